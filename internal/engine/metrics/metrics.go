package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision engine.
type Metrics struct {
	// Decisions by outcome (auto_approved / queued) and reason
	Decisions *prometheus.CounterVec

	// End-to-end evaluation latency
	EvaluateLatency prometheus.Histogram

	// Items queued at critical priority, the alerting signal
	CriticalQueued prometheus.Counter
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_engine_decisions_total",
			Help: "Total decisions by outcome and reason",
		}, []string{"outcome", "reason"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "txgate_engine_evaluate_duration_seconds",
			Help:    "End-to-end duration of transaction evaluations",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		CriticalQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "txgate_engine_critical_queued_total",
			Help: "Total transactions queued at critical priority",
		}),
	}
}

// DecisionMade records one completed evaluation.
func (m *Metrics) DecisionMade(outcome, reason string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, reason).Inc()
	}
}

// ObserveEvaluateLatency records one evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// CriticalItemQueued records a critical-priority enqueue.
func (m *Metrics) CriticalItemQueued() {
	if m != nil {
		m.CriticalQueued.Inc()
	}
}
