// Package risk combines independent scoring layers into a single 0-100 risk
// value plus a fraud confidence estimate. Layers run concurrently; a slow or
// failing layer degrades the result instead of blocking the decision.
package risk

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"txgate/internal/risk/metrics"
	id "txgate/pkg/domain"
)

// defaultJoinTimeout bounds the fan-out join: whatever has not completed by
// then counts as failed.
const defaultJoinTimeout = 2 * time.Second

// Weighted pairs a layer with its share of the final score. Weights should
// sum to 1; the scorer normalizes over successful layers anyway, so a failed
// layer's weight is redistributed proportionally.
type Weighted struct {
	Layer  Layer
	Weight float64
}

// Scorer fans a transaction out to all layers and aggregates whatever
// completed within the join timeout.
type Scorer struct {
	layers      []Weighted
	joinTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Scorer.
type Option func(*Scorer)

// WithJoinTimeout overrides the fan-out join timeout.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.joinTimeout = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer constructs a scorer over the given weighted layers.
func NewScorer(logger *slog.Logger, layers []Weighted, opts ...Option) *Scorer {
	s := &Scorer{
		layers:      layers,
		joinTimeout: defaultJoinTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Standard layer weights.
const (
	WeightRule        = 0.30
	WeightStatistical = 0.30
	WeightBehavioral  = 0.25
	WeightRelational  = 0.15
)

// StandardLayers assembles the four production layers with their weights.
func StandardLayers(rule, statistical, behavioral, relational Layer) []Weighted {
	return []Weighted{
		{Layer: rule, Weight: WeightRule},
		{Layer: statistical, Weight: WeightStatistical},
		{Layer: behavioral, Weight: WeightBehavioral},
		{Layer: relational, Weight: WeightRelational},
	}
}

var tracer = otel.Tracer("txgate/internal/risk")

// Score runs every layer concurrently and aggregates the successes. The
// weight of a failed layer is redistributed proportionally across the
// remaining layers. When all layers fail it returns ErrScoringUnavailable;
// callers must then treat the transaction as maximum risk.
func (s *Scorer) Score(ctx context.Context, txn id.TransactionContext) (Result, error) {
	ctx, span := tracer.Start(ctx, "risk.Score")
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", txn.ID.String()))

	ctx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()

	type layerOutcome struct {
		score LayerScore
		err   error
	}
	outcomes := make([]layerOutcome, len(s.layers))

	// Plain WaitGroup rather than errgroup: a layer error must not cancel
	// its siblings.
	var wg sync.WaitGroup
	for i, wl := range s.layers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			score, err := wl.Layer.Evaluate(ctx, txn)
			elapsed := time.Since(start)

			s.metrics.ObserveLayerLatency(wl.Layer.Name(), elapsed)
			if err != nil {
				s.metrics.IncrementLayerFailure(wl.Layer.Name())
			}
			outcomes[i] = layerOutcome{score: score, err: err}
		}()
	}
	wg.Wait()

	result := Result{Subscores: make(map[string]int, len(s.layers))}
	var weightedSum, weightSum float64
	for i, wl := range s.layers {
		out := outcomes[i]
		if out.err != nil {
			result.FailedLayers = append(result.FailedLayers, wl.Layer.Name())
			s.logger.WarnContext(ctx, "risk layer failed",
				"layer", wl.Layer.Name(),
				"transaction_id", txn.ID,
				"error", out.err,
			)
			continue
		}
		subscore := clampScore(out.score.Score)
		result.Subscores[wl.Layer.Name()] = subscore
		weightedSum += wl.Weight * float64(subscore)
		weightSum += wl.Weight
		if fraud := clampScore(out.score.FraudSignal); fraud > result.FraudConfidence {
			result.FraudConfidence = fraud
		}
	}

	if weightSum == 0 {
		return Result{}, ErrScoringUnavailable
	}

	// Dividing by the successful weight sum redistributes failed layers'
	// weight proportionally.
	result.RiskScore = clampScore(int(math.Round(weightedSum / weightSum)))
	s.metrics.ObserveRiskScore(result.RiskScore)

	span.SetAttributes(
		attribute.Int("risk_score", result.RiskScore),
		attribute.Int("fraud_confidence", result.FraudConfidence),
		attribute.Int("failed_layers", len(result.FailedLayers)),
	)
	return result, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
