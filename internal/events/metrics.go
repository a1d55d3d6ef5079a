package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for event publishing.
type Metrics struct {
	Published *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all event metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_events_published_total",
			Help: "Total events successfully published by type",
		}, []string{"type"}),

		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_events_publish_failures_total",
			Help: "Total event publish failures by type",
		}, []string{"type"}),

		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_events_dropped_total",
			Help: "Total events dropped because the buffer was full, by type",
		}, []string{"type"}),
	}
}

func (m *Metrics) EventPublished(eventType string) {
	if m != nil {
		m.Published.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) PublishFailed(eventType string) {
	if m != nil {
		m.Failed.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventDropped(eventType string) {
	if m != nil {
		m.Dropped.WithLabelValues(eventType).Inc()
	}
}
