package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the decision procedure.
type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration prometheus.Histogram
	CacheHits        prometheus.Counter
}

// New creates and registers the decision metrics.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_decisions_total",
			Help: "Decision outcomes by result and matched rule",
		}, []string{"outcome", "match"}),
		DecisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keygate_decision_duration_seconds",
			Help:    "Latency of the decision walk",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keygate_decision_cache_hits_total",
			Help: "Approvals served from the identity-bound cache",
		}),
	}
}

// ObserveDecision records one completed decision.
func (m *Metrics) ObserveDecision(outcome, match string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(outcome, match).Inc()
	m.DecisionDuration.Observe(elapsed.Seconds())
}

// ObserveCacheHit records one cache-served approval.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}
