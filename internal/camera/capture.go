// Package camera provides frame sources: local devices, files or URLs, and the
// DJI Tello video stream.
package camera

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/logger"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("capture closed")

// DeviceOptions selects what a Device opens. URL wins over Device when set.
type DeviceOptions struct {
	Device int    // camera index
	URL    string // file path or stream URL
	Width  int
	Height int
	FPS    int
}

// Device captures from a camera index, a video file or a stream URL.
// Connect and StartStream are no-ops; the capture opens in NewDevice.
type Device struct {
	webcam *gocv.VideoCapture
	source string
	width  int
	height int
	frames int  // 0 for live sources
	file   bool // local file, a failed read after the first frame is its end
	read   int
	mu     sync.Mutex
}

// NewDevice opens the capture described by opts.
func NewDevice(opts DeviceOptions) (*Device, error) {
	var (
		webcam *gocv.VideoCapture
		err    error
		source string
	)
	if opts.URL != "" {
		source = opts.URL
		webcam, err = gocv.OpenVideoCapture(opts.URL)
	} else {
		source = fmt.Sprintf("device %d", opts.Device)
		webcam, err = gocv.OpenVideoCapture(opts.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("failed to open %s", source)
	}

	// Set camera properties; files ignore them
	if opts.Width > 0 && opts.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(opts.FPS))
	}

	// Get actual dimensions (camera may not support requested resolution)
	d := &Device{
		webcam: webcam,
		source: source,
		width:  int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height: int(webcam.Get(gocv.VideoCaptureFrameHeight)),
		file:   isFile(opts.URL),
	}
	if opts.URL != "" {
		if n := int(webcam.Get(gocv.VideoCaptureFrameCount)); n > 0 {
			d.frames = n
		}
	}

	logger.Log().Info("capture opened",
		zap.String("source", source),
		zap.Int("width", d.width),
		zap.Int("height", d.height),
		zap.Int("frames", d.frames),
	)
	return d, nil
}

// Connect is a no-op for local captures.
func (d *Device) Connect() error { return nil }

// StartStream is a no-op for local captures.
func (d *Device) StartStream() error { return nil }

// StopStream is a no-op for local captures.
func (d *Device) StopStream() error { return nil }

// Read captures a frame into the provided Mat. A file source returns io.EOF
// once its frames are exhausted.
func (d *Device) Read(frame *gocv.Mat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.webcam == nil {
		return ErrClosed
	}

	if !d.webcam.Read(frame) || frame.Empty() {
		if endOfSource(d.file, d.read, d.frames) {
			return io.EOF
		}
		return fmt.Errorf("failed to read frame %d from %s", d.read, d.source)
	}
	d.read++
	return nil
}

// endOfSource reports whether a failed read means the source is exhausted.
// Container frame counts are estimates, so a file ends at its first failed
// read after at least one frame whether or not the count was reached.
func endOfSource(file bool, read, frames int) bool {
	if frames > 0 && read >= frames {
		return true
	}
	return file && read > 0
}

func isFile(url string) bool {
	if url == "" {
		return false
	}
	return !strings.Contains(url, "://") || strings.HasPrefix(url, "file://")
}

// FrameCount is the number of frames of a file source, 0 for live sources.
func (d *Device) FrameCount() int {
	return d.frames
}

// Width returns frame width
func (d *Device) Width() int {
	return d.width
}

// Height returns frame height
func (d *Device) Height() int {
	return d.height
}

// Close releases the capture
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.webcam != nil {
		err := d.webcam.Close()
		d.webcam = nil
		return err
	}
	return nil
}
