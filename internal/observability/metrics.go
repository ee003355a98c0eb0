package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	CompletionRequests *prometheus.CounterVec
	CompletionLatency  *prometheus.HistogramVec
	LimitReached       prometheus.Counter

	latency *latencyWindow
}

// NewMetrics registers the service instruments on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the service instruments on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active game sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		CompletionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Completion gateway calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CompletionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Completion gateway call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}, []string{"provider"}),
		LimitReached: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_limit_reached_total",
			Help:      "Submissions rejected because the session's question budget is spent.",
		}),
		latency: newLatencyWindow(256),
	}
}

// ObserveCompletion records one gateway call. outcome is "ok" or a failure kind.
func (m *Metrics) ObserveCompletion(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionRequests.WithLabelValues(provider, outcome).Inc()
	m.CompletionLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
	m.latency.Observe(StageCompletion, float64(d.Milliseconds()))
	if outcome != "ok" {
		m.latency.ObserveIndicator("completion_" + outcome)
	}
}

// ObserveRequest records the end-to-end duration of one game operation.
func (m *Metrics) ObserveRequest(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(stage, float64(d.Milliseconds()))
}

// ObserveLimitReached counts a submission refused by the turn limit.
func (m *Metrics) ObserveLimitReached() {
	if m == nil {
		return
	}
	m.LimitReached.Inc()
	m.latency.ObserveIndicator("turn_limit_reached")
}

// SnapshotLatency returns rolling latency statistics for the perf endpoint.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
