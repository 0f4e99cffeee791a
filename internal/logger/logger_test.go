package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	t.Run("development debug", func(t *testing.T) {
		require.NoError(t, Init("debug", true))
		assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("production warn", func(t *testing.T) {
		require.NoError(t, Init("warn", false))
		assert.False(t, Log().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, Log().Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("bad level", func(t *testing.T) {
		assert.Error(t, Init("loud", false))
	})
}

func TestSetReplacesGlobals(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))

	Log().Info("frame", zap.Int("index", 3))
	zap.L().Info("global")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "frame", logs.All()[0].Message)
	assert.Equal(t, "global", logs.All()[1].Message)
}
