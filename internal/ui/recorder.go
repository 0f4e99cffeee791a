package ui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// RecorderOptions configures a headless Recorder.
type RecorderOptions struct {
	Path     string    // output video file
	FPS      float64   // output frame rate
	Frames   int       // expected frames, <= 0 shows a spinner
	Progress io.Writer // progress bar output
}

// Recorder writes annotated frames to a video file instead of a window. It
// never reports a key press.
type Recorder struct {
	opts   RecorderOptions
	writer *gocv.VideoWriter
	bar    *progressbar.ProgressBar
}

// NewRecorder returns a recorder; the file is created on the first frame.
func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	total := int64(opts.Frames)
	if total <= 0 {
		total = -1
	}
	progress := []progressbar.Option{
		progressbar.OptionSetDescription("Recording"),
		progressbar.OptionShowCount(),
	}
	if opts.Progress != nil {
		progress = append(progress, progressbar.OptionSetWriter(opts.Progress))
	}

	return &Recorder{
		opts: opts,
		bar:  progressbar.NewOptions64(total, progress...),
	}
}

// Show appends a frame to the output file.
func (r *Recorder) Show(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("empty frame")
	}

	if r.writer == nil {
		w, err := gocv.VideoWriterFile(r.opts.Path, "MJPG", r.opts.FPS, frame.Cols(), frame.Rows(), true)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", r.opts.Path, err)
		}
		r.writer = w
	}

	if err := r.writer.Write(*frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return r.bar.Add(1)
}

// PollKey always reports no key.
func (r *Recorder) PollKey() int {
	return -1
}

// Close finalizes the output file.
func (r *Recorder) Close() error {
	var err error
	if r.writer != nil {
		err = r.writer.Close()
		r.writer = nil
	}
	return multierr.Append(err, r.bar.Finish())
}
