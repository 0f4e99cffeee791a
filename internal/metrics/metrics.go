// Package metrics exposes pipeline counters and process usage to Prometheus.
// A nil *Metrics is a valid recorder that does nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/dudu/droneid/internal/logger"
)

const namespace = "droneid"

// SampleInterval is how often process usage is refreshed while serving.
const SampleInterval = 500 * time.Millisecond

// Metrics holds the collectors of one pipeline.
type Metrics struct {
	registry *prometheus.Registry

	frames       prometheus.Counter
	persons      prometheus.Counter
	facesLocated prometheus.Counter
	facesMatched prometheus.Counter
	recoverable  *prometheus.CounterVec
	stage        *prometheus.HistogramVec
	memUsage     prometheus.Gauge
	cpuUsage     prometheus.Gauge

	proc *process.Process
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames processed",
		}),
		persons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persons_detected_total",
			Help:      "Person boxes kept after suppression",
		}),
		facesLocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_located_total",
			Help:      "Faces compared against the reference",
		}),
		facesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_matched_total",
			Help:      "Faces matching the reference",
		}),
		recoverable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoverable_errors_total",
			Help:      "Per-frame errors that degraded to empty results",
		}, []string{"stage"}),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Per-frame stage duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"stage"}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_memory_megabytes",
			Help:      "Resident memory in megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage in percent",
		}),
	}

	m.registry.MustRegister(
		m.frames, m.persons, m.facesLocated, m.facesMatched,
		m.recoverable, m.stage, m.memUsage, m.cpuUsage,
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFrame counts one processed frame and its results.
func (m *Metrics) ObserveFrame(persons, faces, matched int) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.persons.Add(float64(persons))
	m.facesLocated.Add(float64(faces))
	m.facesMatched.Add(float64(matched))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stage.WithLabelValues(stage).Observe(d.Seconds())
}

// RecoverableError counts a per-frame failure in stage.
func (m *Metrics) RecoverableError(stage string) {
	if m == nil {
		return
	}
	m.recoverable.WithLabelValues(stage).Inc()
}

// SampleProcess refreshes the memory and CPU gauges for this process.
func (m *Metrics) SampleProcess() error {
	if m == nil {
		return nil
	}
	if m.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return fmt.Errorf("failed to inspect process: %w", err)
		}
		m.proc = proc
	}

	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return fmt.Errorf("failed to read memory info: %w", err)
	}
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return fmt.Errorf("failed to read cpu usage: %w", err)
	}

	m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr and samples process usage until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if m == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Log().Info("metrics server listening", zap.String("addr", addr))

	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("metrics server shutdown: %w", err)
			}
			return nil
		case err, ok := <-errCh:
			if ok && err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := m.SampleProcess(); err != nil {
				logger.Log().Debug("process sample failed", zap.Error(err))
			}
		}
	}
}
