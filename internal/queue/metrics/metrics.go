package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review queue module.
type Metrics struct {
	// Items entering the queue, by priority
	Enqueued *prometheus.CounterVec

	// Successful state transitions, by action
	Transitions *prometheus.CounterVec

	// Optimistic concurrency losers
	VersionConflicts prometheus.Counter

	// Time from enqueue to a decision
	TimeToDecision prometheus.Histogram
}

// New creates a Metrics instance with all queue module metrics registered.
func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_queue_enqueued_total",
			Help: "Total items enqueued for review by priority",
		}, []string{"priority"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_queue_transitions_total",
			Help: "Total successful queue item transitions by action",
		}, []string{"action"}),

		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "txgate_queue_version_conflicts_total",
			Help: "Total transitions rejected by the optimistic version check",
		}),

		TimeToDecision: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "txgate_queue_time_to_decision_seconds",
			Help:    "Time from enqueue to approve or reject",
			Buckets: []float64{60, 300, 900, 3600, 7200, 14400, 28800, 86400, 259200},
		}),
	}
}

// ItemEnqueued records one item entering the queue.
func (m *Metrics) ItemEnqueued(priority string) {
	if m != nil {
		m.Enqueued.WithLabelValues(priority).Inc()
	}
}

// TransitionApplied records one successful transition.
func (m *Metrics) TransitionApplied(action string) {
	if m != nil {
		m.Transitions.WithLabelValues(action).Inc()
	}
}

// VersionConflict records a transition lost to a concurrent writer.
func (m *Metrics) VersionConflict() {
	if m != nil {
		m.VersionConflicts.Inc()
	}
}

// ObserveTimeToDecision records the latency of one decided item.
func (m *Metrics) ObserveTimeToDecision(d time.Duration) {
	if m != nil {
		m.TimeToDecision.Observe(d.Seconds())
	}
}
