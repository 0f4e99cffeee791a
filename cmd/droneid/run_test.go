package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dudu/droneid/internal/camera"
	"github.com/dudu/droneid/internal/config"
	"github.com/dudu/droneid/internal/pipeline"
	"github.com/dudu/droneid/internal/ui"
)

func TestApplyRunFlags(t *testing.T) {
	f := runCmd.Flags()
	require.NoError(t, f.Set("reference", "me.jpg"))
	require.NoError(t, f.Set("tello", "true"))
	require.NoError(t, f.Set("conf", "0.7"))
	require.NoError(t, f.Set("no-preview", "true"))
	require.NoError(t, f.Set("record", "out.avi"))

	c := config.Default()
	applyRunFlags(runCmd, c)

	assert.Equal(t, "me.jpg", c.Identity.ReferenceImage)
	assert.Equal(t, config.SourceTello, c.Source.Kind)
	assert.Equal(t, float32(0.7), c.Detector.ConfThreshold)
	assert.False(t, c.Display.Preview)
	assert.Equal(t, "out.avi", c.Display.Record)

	// unset flags leave the config alone
	assert.Equal(t, config.BackendDarknet, c.Detector.Backend)
	assert.Equal(t, float32(0.4), c.Detector.NMSThreshold)
	assert.Equal(t, 0.6, c.Identity.Tolerance)
}

func TestApplyRunFlags_TelloOff(t *testing.T) {
	f := runCmd.Flags()
	require.NoError(t, f.Set("tello", "false"))
	t.Cleanup(func() { _ = f.Set("tello", "true") })

	c := config.Default()
	c.Source.Kind = config.SourceTello
	applyRunFlags(runCmd, c)

	assert.Equal(t, config.SourceDevice, c.Source.Kind)
}

type sizedSource struct {
	pipeline.Source
}

func (sizedSource) Width() int  { return 1280 }
func (sizedSource) Height() int { return 720 }

type ratedSink struct {
	pipeline.Sink
}

func (ratedSink) FPS() float64 { return 29.5 }

func TestLogFields(t *testing.T) {
	t.Run("sized source", func(t *testing.T) {
		fields := sourceFields(sizedSource{})
		assert.Equal(t, []zap.Field{zap.Int("native_width", 1280), zap.Int("native_height", 720)}, fields)
	})

	t.Run("source without size", func(t *testing.T) {
		assert.Empty(t, sourceFields(camera.NewTello(camera.TelloOptions{})))
	})

	t.Run("rated sink", func(t *testing.T) {
		assert.Equal(t, []zap.Field{zap.Float64("fps", 29.5)}, sinkFields(ratedSink{}))
	})

	t.Run("sink without rate", func(t *testing.T) {
		assert.Empty(t, sinkFields(ui.NewRecorder(ui.RecorderOptions{Path: "out.avi", Progress: io.Discard})))
	})
}

func TestNewSink_NothingToPresent(t *testing.T) {
	_, err := newSink(config.DisplayConfig{}, config.SourceConfig{}, 0)
	assert.Error(t, err)
}

func TestNewSource_UnknownKind(t *testing.T) {
	_, _, err := newSource(config.SourceConfig{Kind: "satellite"}, 30)
	assert.Error(t, err)
}

func TestNewDetector_UnknownBackend(t *testing.T) {
	_, err := newDetector(config.DetectorConfig{Backend: "tflite"})
	assert.Error(t, err)
}

func TestUsesONNXRuntime(t *testing.T) {
	c := config.Default()
	assert.False(t, usesONNXRuntime(c))

	c.Identity.Locator = config.LocatorSCRFD
	assert.True(t, usesONNXRuntime(c))

	c = config.Default()
	c.Detector.Backend = config.BackendONNX
	assert.True(t, usesONNXRuntime(c))
}

func TestNewFaceLocator_Dlib(t *testing.T) {
	_, closeFn, err := newFaceLocator(config.IdentityConfig{Locator: config.LocatorDlib}, nil)
	require.NoError(t, err)
	assert.NoError(t, closeFn())

	_, _, err = newFaceLocator(config.IdentityConfig{Locator: "haar"}, nil)
	assert.Error(t, err)
}

func TestLabelsCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coco.names")
	require.NoError(t, writeFile(path, "person\nbicycle\ncar\n"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Setenv("DRONEID_LOG_LEVEL", "error")

	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(cfgFile, "detector:\n  labels: "+path+"\n"))
	rootCmd.SetArgs([]string{"labels", "--config", cfgFile})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"person" is class 0`)
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
