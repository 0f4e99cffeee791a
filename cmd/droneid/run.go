package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dudu/droneid/internal/config"
	"github.com/dudu/droneid/internal/detector"
	"github.com/dudu/droneid/internal/inference"
	"github.com/dudu/droneid/internal/logger"
	"github.com/dudu/droneid/internal/metrics"
	"github.com/dudu/droneid/internal/overlay"
	"github.com/dudu/droneid/internal/pipeline"
)

var runFlags struct {
	reference   string
	url         string
	device      int
	tello       bool
	backend     string
	record      string
	noPreview   bool
	metricsAddr string
	conf        float32
	nms         float32
	tolerance   float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Detect people and match faces on a live stream",
	Example: `  droneid run --reference me.jpg
  droneid run --reference me.jpg --tello
  droneid run --reference me.jpg --url clip.mp4 --record out.avi`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.reference, "reference", "r", "", "Enrollment image of the identity to match")
	f.StringVar(&runFlags.url, "url", "", "Video file or stream URL instead of a camera")
	f.IntVar(&runFlags.device, "device", 0, "Camera device index")
	f.BoolVar(&runFlags.tello, "tello", false, "Read the DJI Tello video stream")
	f.StringVarP(&runFlags.backend, "backend", "b", config.BackendDarknet, "Detector backend: darknet or onnx")
	f.StringVar(&runFlags.record, "record", "", "Write annotated video to this file instead of a window")
	f.BoolVar(&runFlags.noPreview, "no-preview", false, "Do not open a preview window")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Float32Var(&runFlags.conf, "conf", detector.DefaultConfThreshold, "Detection confidence threshold")
	f.Float32Var(&runFlags.nms, "nms", detector.DefaultNMSThreshold, "Non-maximum suppression IoU threshold")
	f.Float64Var(&runFlags.tolerance, "tolerance", 0.6, "Largest face distance counted as a match")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags lets explicitly set flags win over file and environment.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("reference") {
		c.Identity.ReferenceImage = runFlags.reference
	}
	if f.Changed("url") {
		c.Source.URL = runFlags.url
	}
	if f.Changed("device") {
		c.Source.Device = runFlags.device
	}
	if f.Changed("tello") {
		c.Source.Kind = config.SourceDevice
		if runFlags.tello {
			c.Source.Kind = config.SourceTello
		}
	}
	if f.Changed("backend") {
		c.Detector.Backend = runFlags.backend
	}
	if f.Changed("record") {
		c.Display.Record = runFlags.record
	}
	if f.Changed("no-preview") {
		c.Display.Preview = !runFlags.noPreview
	}
	if f.Changed("metrics-addr") {
		c.Metrics.Addr = runFlags.metricsAddr
	}
	if f.Changed("conf") {
		c.Detector.ConfThreshold = runFlags.conf
	}
	if f.Changed("nms") {
		c.Detector.NMSThreshold = runFlags.nms
	}
	if f.Changed("tolerance") {
		c.Identity.Tolerance = runFlags.tolerance
	}
}

func run(ctx context.Context, c *config.Config) (err error) {
	log := logger.Log()

	labels, err := detector.LoadLabels(c.Detector.Labels)
	if err != nil {
		return err
	}

	if usesONNXRuntime(c) {
		if err := inference.Initialize(c.ONNXRuntime.SharedLibrary); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, inference.Shutdown())
		}()
	}

	log.Info("loading detector", zap.String("backend", c.Detector.Backend))
	det, err := newDetector(c.Detector)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer func() {
		err = multierr.Append(err, det.Close())
	}()

	log.Info("loading face models", zap.String("dir", c.Identity.ModelsDir))
	faces, err := newFaceEngine(c.Identity)
	if err != nil {
		return err
	}
	defer faces.Close()

	locator, closeLocator, err := newFaceLocator(c.Identity, faces)
	if err != nil {
		return fmt.Errorf("failed to create face locator: %w", err)
	}
	defer func() {
		err = multierr.Append(err, closeLocator())
	}()

	src, frames, err := newSource(c.Source, c.Display.FPS)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	sink, err := newSink(c.Display, c.Source, frames)
	if err != nil {
		return multierr.Append(err, src.Close())
	}

	m := metrics.New()
	p, err := pipeline.New(pipeline.Config{
		Width:          c.Source.Width,
		Height:         c.Source.Height,
		ClassName:      c.Detector.Class,
		ConfThreshold:  c.Detector.ConfThreshold,
		NMSThreshold:   c.Detector.NMSThreshold,
		Tolerance:      c.Identity.Tolerance,
		ReferenceImage: c.Identity.ReferenceImage,
	}, pipeline.Deps{
		Source:   src,
		Sink:     sink,
		Detector: det,
		Labels:   labels,
		Locator:  locator,
		Embedder: faces,
		Renderer: overlay.New(c.Display.Title, c.Display.Alpha),
		Metrics:  m,
	})
	if err != nil {
		return multierr.Combine(err, src.Close(), sink.Close())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(runCtx, c.Metrics.Addr); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("running, press q or ESC to quit", sourceFields(src)...)
	err = p.Run(runCtx)

	t := p.LastTiming()
	log.Info("stopped", append([]zap.Field{
		zap.Int("frames", p.Frames()),
		zap.Duration("last_detect", t.Detect),
		zap.Duration("last_identify", t.Identify),
		zap.Duration("last_total", t.Total),
	}, sinkFields(sink)...)...)
	return err
}
