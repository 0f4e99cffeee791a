package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveFrame(1, 2, 1)
		m.ObserveStage("detect", time.Millisecond)
		m.RecoverableError("identify")
	})
	assert.NoError(t, m.SampleProcess())
	assert.NoError(t, m.Serve(context.Background(), ":0"))
	assert.Nil(t, m.Registry())
}

func TestObserveFrame(t *testing.T) {
	m := New()

	m.ObserveFrame(2, 3, 1)
	m.ObserveFrame(1, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.persons))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.facesLocated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.facesMatched))
}

func TestRecoverableError(t *testing.T) {
	m := New()

	m.RecoverableError("detect")
	m.RecoverableError("detect")
	m.RecoverableError("identify")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recoverable.WithLabelValues("detect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recoverable.WithLabelValues("identify")))
}

func TestObserveStage(t *testing.T) {
	m := New()

	m.ObserveStage("detect", 10*time.Millisecond)
	m.ObserveStage("identify", 20*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.stage))
}

func TestSampleProcess(t *testing.T) {
	m := New()

	require.NoError(t, m.SampleProcess())
	assert.Greater(t, testutil.ToFloat64(m.memUsage), 0.0)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFrame(1, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "droneid_frames_total 1")
}

func TestServe_StopsWithContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
