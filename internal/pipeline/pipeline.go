// Package pipeline sequences acquisition, overlay, detection, identification
// and presentation one frame at a time and owns the loop's lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/identity"
	"github.com/dudu/droneid/internal/logger"
	"github.com/dudu/droneid/internal/metrics"
)

// ErrAcquire is returned by Run when no frame can be read from the source.
var ErrAcquire = errors.New("frame acquisition failed")

const (
	keyQuit   = 'q'
	keyEscape = 27
)

// Config holds pipeline configuration
type Config struct {
	Width          int // frames are resized to Width x Height
	Height         int
	ClassName      string
	ConfThreshold  float32
	NMSThreshold   float32
	Tolerance      float64
	ReferenceImage string
}

// Deps are the collaborators of a pipeline. Reference, when set, is used
// instead of enrolling ReferenceImage.
type Deps struct {
	Source    Source
	Sink      Sink
	Detector  Detector
	Labels    detector.Labels
	Locator   identity.FaceLocator
	Embedder  identity.Embedder
	Renderer  Renderer
	Metrics   *metrics.Metrics
	Reference identity.Embedding
}

// Timing holds performance timing information
type Timing struct {
	Acquire  time.Duration
	Overlay  time.Duration
	Detect   time.Duration
	Identify time.Duration
	Present  time.Duration
	Total    time.Duration
}

// FrameResult is what one frame produced. It is not kept past the frame.
type FrameResult struct {
	Boxes  []detector.BoundingBox
	Faces  []identity.FaceMatch
	Timing Timing
}

// Pipeline runs the per-frame stages over a source
type Pipeline struct {
	config    Config
	deps      Deps
	filter    detector.FilterOptions
	matcher   *identity.Matcher
	reference identity.Embedding

	state      atomic.Int32
	lastTiming Timing
	frames     int

	streaming bool
	closeOnce sync.Once
	closeErr  error
}

// New validates the collaborators, resolves the class of interest and enrolls
// the reference identity. Any error here is fatal.
func New(config Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: source is required")
	case deps.Sink == nil:
		return nil, errors.New("pipeline: sink is required")
	case deps.Detector == nil:
		return nil, errors.New("pipeline: detector is required")
	case deps.Locator == nil || deps.Embedder == nil:
		return nil, errors.New("pipeline: face locator and embedder are required")
	case deps.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	}

	if config.Width <= 0 || config.Height <= 0 {
		config.Width, config.Height = 960, 720
	}
	if config.ClassName == "" {
		config.ClassName = "person"
	}

	classID, err := deps.Labels.Index(config.ClassName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve class: %w", err)
	}

	filter := detector.DefaultFilterOptions(classID, config.ClassName)
	if config.ConfThreshold > 0 {
		filter.ConfThreshold = config.ConfThreshold
	}
	if config.NMSThreshold > 0 {
		filter.NMSThreshold = config.NMSThreshold
	}

	p := &Pipeline{
		config:  config,
		deps:    deps,
		filter:  filter,
		matcher: identity.NewMatcher(deps.Locator, deps.Embedder, config.Tolerance),
	}

	p.reference = deps.Reference
	if len(p.reference) == 0 {
		ref, err := identity.Enroll(config.ReferenceImage, deps.Locator, deps.Embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference face: %w", err)
		}
		p.reference = ref
	}

	logger.Log().Info("pipeline ready",
		zap.String("class", config.ClassName),
		zap.Int("class_id", classID),
		zap.Float32("conf_threshold", filter.ConfThreshold),
		zap.Float32("nms_threshold", filter.NMSThreshold),
		zap.Float64("tolerance", p.matcher.Tolerance),
		zap.Int("reference_dims", len(p.reference)),
	)
	return p, nil
}

// ProcessFrame overlays, detects, identifies and annotates one frame in
// place. Detect and Identify failures leave their stage empty.
func (p *Pipeline) ProcessFrame(frame *gocv.Mat) FrameResult {
	totalStart := time.Now()
	var res FrameResult

	start := time.Now()
	p.deps.Renderer.Backdrop(frame)
	res.Timing.Overlay = p.observe(StageOverlay, start)

	start = time.Now()
	boxes, err := p.detect(*frame)
	res.Timing.Detect = p.observe(StageDetect, start)
	if err != nil {
		p.recoverable(StageDetect, err)
	}
	res.Boxes = boxes

	start = time.Now()
	faces, err := p.identify(*frame)
	res.Timing.Identify = p.observe(StageIdentify, start)
	if err != nil {
		p.recoverable(StageIdentify, err)
	}
	res.Faces = faces

	if len(res.Boxes) > 0 {
		p.deps.Renderer.DrawDetections(frame, res.Boxes)
	}
	if len(res.Faces) > 0 {
		p.deps.Renderer.DrawMatches(frame, res.Faces)
	}

	matched := 0
	for _, f := range res.Faces {
		if f.Result.Matched {
			matched++
		}
	}
	p.deps.Metrics.ObserveFrame(len(res.Boxes), len(res.Faces), matched)

	res.Timing.Total = time.Since(totalStart)
	return res
}

func (p *Pipeline) detect(frame gocv.Mat) (boxes []detector.BoundingBox, err error) {
	defer func() {
		if r := recover(); r != nil {
			boxes, err = nil, fmt.Errorf("detector panic: %v", r)
		}
	}()

	raw, err := p.deps.Detector.Detect(frame)
	if err != nil {
		return nil, err
	}
	return detector.Filter(raw, frame.Cols(), frame.Rows(), p.filter), nil
}

func (p *Pipeline) identify(frame gocv.Mat) (faces []identity.FaceMatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			faces, err = nil, fmt.Errorf("identity panic: %v", r)
		}
	}()

	return p.matcher.Match(frame, p.reference)
}

func (p *Pipeline) recoverable(stage Stage, err error) {
	logger.Log().Debug("stage failed, continuing",
		zap.Stringer("stage", stage),
		zap.Int("frame", p.frames),
		zap.Error(err),
	)
	p.deps.Metrics.RecoverableError(stage.String())
}

func (p *Pipeline) observe(stage Stage, start time.Time) time.Duration {
	d := time.Since(start)
	p.deps.Metrics.ObserveStage(stage.String(), d)
	return d
}

// Run connects the source and processes frames until a quit key is pressed,
// ctx is done, or acquisition fails. Resources are released exactly once on
// every exit path.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		err = multierr.Append(err, p.Close())
	}()

	p.setState(StateConnecting)
	if err := p.deps.Source.Connect(); err != nil {
		return fmt.Errorf("failed to connect source: %w", err)
	}
	if err := p.deps.Source.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.streaming = true
	p.setState(StateStreaming)
	logger.Log().Info("streaming", zap.Int("width", p.config.Width), zap.Int("height", p.config.Height))

	frame := gocv.NewMat()
	defer frame.Close()

	size := image.Pt(p.config.Width, p.config.Height)
	for {
		start := time.Now()
		if err := p.deps.Source.Read(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				logger.Log().Info("end of stream", zap.Int("frames", p.frames))
				return nil
			}
			return fmt.Errorf("%w: frame %d: %w", ErrAcquire, p.frames, err)
		}
		if frame.Empty() {
			return fmt.Errorf("%w: frame %d: empty frame", ErrAcquire, p.frames)
		}
		if frame.Cols() != size.X || frame.Rows() != size.Y {
			gocv.Resize(frame, &frame, size, 0, 0, gocv.InterpolationLinear)
		}
		acquire := p.observe(StageAcquire, start)

		res := p.ProcessFrame(&frame)
		res.Timing.Acquire = acquire

		start = time.Now()
		if err := p.deps.Sink.Show(&frame); err != nil {
			return fmt.Errorf("failed to present frame %d: %w", p.frames, err)
		}
		res.Timing.Present = p.observe(StagePresent, start)
		res.Timing.Total += acquire + res.Timing.Present

		p.lastTiming = res.Timing
		p.frames++

		if key := p.deps.Sink.PollKey(); key == keyQuit || key == keyEscape {
			logger.Log().Info("quit requested", zap.Int("frames", p.frames))
			return nil
		}
		select {
		case <-ctx.Done():
			logger.Log().Info("stopping", zap.Int("frames", p.frames), zap.Error(ctx.Err()))
			return nil
		default:
		}
	}
}

// Close stops the stream and releases the source and sink. Only the first
// call has an effect.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.setState(StateStopping)

		var err error
		if p.streaming {
			err = multierr.Append(err, p.deps.Source.StopStream())
		}
		err = multierr.Append(err, p.deps.Source.Close())
		err = multierr.Append(err, p.deps.Sink.Close())
		p.closeErr = err

		p.setState(StateDisconnected)
		if err != nil {
			logger.Log().Warn("cleanup errors", zap.Error(err))
		}
	})
	return p.closeErr
}

// State returns the current loop state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// LastTiming returns timing from the last presented frame
func (p *Pipeline) LastTiming() Timing {
	return p.lastTiming
}

// Frames returns the number of frames presented so far.
func (p *Pipeline) Frames() int {
	return p.frames
}
