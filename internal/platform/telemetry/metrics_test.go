package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsCounters(t *testing.T) {
	metrics := NewPrometheusMetrics()
	metrics.ObserveVote("created")
	metrics.ObserveVote("created")
	metrics.ObserveVote("replaced")
	metrics.ObserveSessionOperation("create_session", "ok")
	metrics.ObserveStatsDuration(20 * time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.votes.WithLabelValues("created")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.votes.WithLabelValues("replaced")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.sessionOperations.WithLabelValues("create_session", "ok")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.statsDuration))
}

func TestPrometheusMetricsHandler(t *testing.T) {
	metrics := NewPrometheusMetrics()
	metrics.ObserveVote("rejected")

	server := httptest.NewServer(metrics.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `animevote_votes_total{outcome="rejected"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesDoNotCollide(t *testing.T) {
	first := NewPrometheusMetrics()
	second := NewPrometheusMetrics()
	first.ObserveVote("created")
	assert.InDelta(t, 0, testutil.ToFloat64(second.votes.WithLabelValues("created")), 0)
}
