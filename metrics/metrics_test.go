package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveCommand("search", "ok", 200*time.Millisecond)
	m.ObserveCommand("search", "ok", time.Second)
	m.ObserveCommand("ping", "error", time.Millisecond)
	m.ObservePoll("busy")
	m.ObservePoll("idle")
	m.ObserveAnnotation("timeout", 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("ping", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusPollsTotal.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnnotationsTotal.WithLabelValues("timeout")))
}

func TestNewIsRepeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("isearch", 200, 10*time.Millisecond)
	m.ObserveRequest("status", 0, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `comicbot_backend_request_duration_seconds_count{code="200",op="isearch"} 1`)
	assert.Contains(t, string(body), `comicbot_backend_request_duration_seconds_count{code="none",op="status"} 1`)
}
