package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the risk scoring module.
type Metrics struct {
	// Per-layer evaluation latencies
	LayerLatency *prometheus.HistogramVec

	// Per-layer failures (errors and timeouts)
	LayerFailures *prometheus.CounterVec

	// Final risk score distribution
	RiskScore prometheus.Histogram
}

// New creates a Metrics instance with all risk module metrics registered.
func New() *Metrics {
	return &Metrics{
		LayerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txgate_risk_layer_duration_seconds",
			Help:    "Duration of risk layer evaluations by layer",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"layer"}),

		LayerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "txgate_risk_layer_failures_total",
			Help: "Total failed risk layer evaluations by layer",
		}, []string{"layer"}),

		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "txgate_risk_score",
			Help:    "Distribution of final risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}
}

// ObserveLayerLatency records the duration of one layer evaluation.
func (m *Metrics) ObserveLayerLatency(layer string, d time.Duration) {
	if m != nil {
		m.LayerLatency.WithLabelValues(layer).Observe(d.Seconds())
	}
}

// IncrementLayerFailure records a failed layer evaluation.
func (m *Metrics) IncrementLayerFailure(layer string) {
	if m != nil {
		m.LayerFailures.WithLabelValues(layer).Inc()
	}
}

// ObserveRiskScore records a final aggregated risk score.
func (m *Metrics) ObserveRiskScore(score int) {
	if m != nil {
		m.RiskScore.Observe(float64(score))
	}
}
