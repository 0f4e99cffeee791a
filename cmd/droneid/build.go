package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dudu/droneid/internal/camera"
	"github.com/dudu/droneid/internal/config"
	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/identity"
	"github.com/dudu/droneid/internal/inference"
	"github.com/dudu/droneid/internal/pipeline"
	"github.com/dudu/droneid/internal/ui"
)

// usesONNXRuntime reports whether any configured model runs on ONNX Runtime.
func usesONNXRuntime(c *config.Config) bool {
	return c.Detector.Backend == config.BackendONNX || c.Identity.Locator == config.LocatorSCRFD
}

// newDetector loads the configured detection backend. The ONNX backend needs
// an initialized runtime.
func newDetector(c config.DetectorConfig) (pipeline.Detector, error) {
	switch c.Backend {
	case config.BackendDarknet:
		return detector.NewDarknet(c.Config, c.Weights, c.InputSize)
	case config.BackendONNX:
		return detector.NewONNX(c.Model, c.InputSize, inference.Options{})
	default:
		return nil, fmt.Errorf("unknown detector backend %q", c.Backend)
	}
}

// newFaceLocator returns engine itself for the dlib locator, or an SCRFD
// locator that must be closed by the caller.
func newFaceLocator(c config.IdentityConfig, engine *identity.FaceEngine) (loc identity.FaceLocator, closeFn func() error, err error) {
	switch c.Locator {
	case config.LocatorDlib:
		return engine, func() error { return nil }, nil
	case config.LocatorSCRFD:
		s, err := identity.NewSCRFD(c.SCRFDModel, identity.DefaultSCRFDSize, c.SCRFDThreshold, inference.Options{})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown face locator %q", c.Locator)
	}
}

func newFaceEngine(c config.IdentityConfig) (*identity.FaceEngine, error) {
	return identity.NewFaceEngine(identity.EngineOptions{
		ModelsDir: c.ModelsDir,
		CNN:       c.CNN,
		Jitter:    c.Jitter,
	})
}

// newSource opens the configured capture. frames is the length of a file
// source, 0 when unknown.
func newSource(c config.SourceConfig, fps float64) (src pipeline.Source, frames int, err error) {
	switch c.Kind {
	case config.SourceTello:
		return camera.NewTello(camera.TelloOptions{Addr: c.TelloAddr}), 0, nil
	case config.SourceDevice:
		d, err := camera.NewDevice(camera.DeviceOptions{
			Device: c.Device,
			URL:    c.URL,
			Width:  c.Width,
			Height: c.Height,
			FPS:    int(fps),
		})
		if err != nil {
			return nil, 0, err
		}
		return d, d.FrameCount(), nil
	default:
		return nil, 0, fmt.Errorf("unknown source kind %q", c.Kind)
	}
}

// newSink picks the recorder when an output file is set, else the window.
func newSink(c config.DisplayConfig, src config.SourceConfig, frames int) (pipeline.Sink, error) {
	switch {
	case c.Record != "":
		return ui.NewRecorder(ui.RecorderOptions{
			Path:     c.Record,
			FPS:      c.FPS,
			Frames:   frames,
			Progress: os.Stderr,
		}), nil
	case c.Preview:
		return ui.NewWindow(c.Title, src.Width, src.Height), nil
	default:
		return nil, fmt.Errorf("nothing to present: enable display.preview or set display.record")
	}
}

// sourceFields describes the native frame size of sources that know it.
// Frames are resized to the configured size before detection either way.
func sourceFields(src pipeline.Source) []zap.Field {
	s, ok := src.(interface {
		Width() int
		Height() int
	})
	if !ok {
		return nil
	}
	return []zap.Field{zap.Int("native_width", s.Width()), zap.Int("native_height", s.Height())}
}

// sinkFields reports the presentation rate of sinks that measure it.
func sinkFields(sink pipeline.Sink) []zap.Field {
	s, ok := sink.(interface{ FPS() float64 })
	if !ok {
		return nil
	}
	return []zap.Field{zap.Float64("fps", s.FPS())}
}
