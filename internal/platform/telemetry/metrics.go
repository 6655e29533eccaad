package telemetry

import (
	"net/http"
	"time"

	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics records voting outcomes on a private registry so several
// instances can coexist in one process (tests, api and worker).
type PrometheusMetrics struct {
	registry          *prometheus.Registry
	votes             *prometheus.CounterVec
	sessionOperations *prometheus.CounterVec
	statsDuration     prometheus.Histogram
}

func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &PrometheusMetrics{
		registry: registry,
		votes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animevote_votes_total",
				Help: "Vote submissions by outcome (created, replaced, rejected, failed).",
			},
			[]string{"outcome"},
		),
		sessionOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animevote_session_ops_total",
				Help: "Session write operations by operation and status.",
			},
			[]string{"operation", "status"},
		),
		statsDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "animevote_stats_duration_seconds",
				Help:    "Time spent recomputing session statistics from the ledger.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *PrometheusMetrics) ObserveVote(outcome string) {
	m.votes.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ObserveSessionOperation(operation string, status string) {
	m.sessionOperations.WithLabelValues(operation, status).Inc()
}

func (m *PrometheusMetrics) ObserveStatsDuration(duration time.Duration) {
	m.statsDuration.Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ ports.Metrics = (*PrometheusMetrics)(nil)
