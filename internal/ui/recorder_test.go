package ui

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestRecorder_NoKey(t *testing.T) {
	r := NewRecorder(RecorderOptions{Path: filepath.Join(t.TempDir(), "out.avi"), Progress: io.Discard})
	assert.Equal(t, -1, r.PollKey())
	require.NoError(t, r.Close())
}

func TestRecorder_RejectsEmptyFrame(t *testing.T) {
	r := NewRecorder(RecorderOptions{Path: filepath.Join(t.TempDir(), "out.avi"), Progress: io.Discard})
	defer r.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	assert.Error(t, r.Show(&frame))
	assert.Error(t, r.Show(nil))
	assert.Nil(t, r.writer)
}

func TestRecorder_Defaults(t *testing.T) {
	r := NewRecorder(RecorderOptions{Progress: io.Discard})
	assert.Equal(t, 30.0, r.opts.FPS)
}
