package risk

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txgate/internal/risk/metrics"
	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// stubLayer returns a fixed score or error, optionally after a delay.
type stubLayer struct {
	name  string
	score LayerScore
	err   error
	delay time.Duration
}

func (l stubLayer) Name() string { return l.name }

func (l stubLayer) Evaluate(ctx context.Context, _ id.TransactionContext) (LayerScore, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return LayerScore{}, ctx.Err()
		}
	}
	return l.score, l.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testTxn() id.TransactionContext {
	return id.TransactionContext{
		ID:             id.TransactionID(uuid.New()),
		OrganizationID: id.OrganizationID(uuid.New()),
		Amount:         100_00,
		Currency:       "USD",
		SubmitterRole:  "accountant",
	}
}

func TestScore_WeightedAggregation(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 100}}, Weight: 0.30},
		{Layer: stubLayer{name: "statistical", score: LayerScore{Score: 0}}, Weight: 0.30},
		{Layer: stubLayer{name: "behavioral", score: LayerScore{Score: 40}}, Weight: 0.25},
		{Layer: stubLayer{name: "relational", score: LayerScore{Score: 20}}, Weight: 0.15},
	})

	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)

	// 0.30*100 + 0.30*0 + 0.25*40 + 0.15*20 = 43
	assert.Equal(t, 43, result.RiskScore)
	assert.Empty(t, result.FailedLayers)
	assert.Equal(t, map[string]int{
		"rule": 100, "statistical": 0, "behavioral": 40, "relational": 20,
	}, result.Subscores)
}

func TestScore_FraudConfidenceIsMaxSignal(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 10, FraudSignal: 30}}, Weight: 0.5},
		{Layer: stubLayer{name: "statistical", score: LayerScore{Score: 10, FraudSignal: 85}}, Weight: 0.5},
	})

	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)
	assert.Equal(t, 85, result.FraudConfidence)
}

func TestScore_WeightRedistributionOnFailure(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 80}}, Weight: 0.30},
		{Layer: stubLayer{name: "statistical", err: errors.New("inference down")}, Weight: 0.30},
		{Layer: stubLayer{name: "behavioral", score: LayerScore{Score: 40}}, Weight: 0.25},
		{Layer: stubLayer{name: "relational", score: LayerScore{Score: 0}}, Weight: 0.15},
	})

	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)

	// (0.30*80 + 0.25*40 + 0.15*0) / (0.30+0.25+0.15) = 34/0.70 ≈ 49
	assert.Equal(t, 49, result.RiskScore)
	assert.Equal(t, []string{"statistical"}, result.FailedLayers)
	assert.True(t, result.Degraded())
}

func TestScore_AllLayersFailed(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", err: errors.New("boom")}, Weight: 0.5},
		{Layer: stubLayer{name: "statistical", err: errors.New("boom")}, Weight: 0.5},
	})

	_, err := scorer.Score(context.Background(), testTxn())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScoringUnavailable)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestScore_SlowLayerIsDropped(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 60}}, Weight: 0.5},
		{Layer: stubLayer{name: "statistical", score: LayerScore{Score: 0}, delay: 5 * time.Second}, Weight: 0.5},
	}, WithJoinTimeout(50*time.Millisecond))

	start := time.Now()
	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second, "join must not wait for the slow layer")
	assert.Equal(t, 60, result.RiskScore)
	assert.Equal(t, []string{"statistical"}, result.FailedLayers)
}

func TestScore_SubscoresAreClamped(t *testing.T) {
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 250, FraudSignal: 300}}, Weight: 1.0},
	})

	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)
	assert.Equal(t, 100, result.RiskScore)
	assert.Equal(t, 100, result.FraudConfidence)
}

func TestScore_RecordsScoreDistribution(t *testing.T) {
	m := metrics.New()
	scorer := NewScorer(discardLogger(), []Weighted{
		{Layer: stubLayer{name: "rule", score: LayerScore{Score: 60}}, Weight: 0.5},
		{Layer: stubLayer{name: "behavioral", score: LayerScore{Score: 20}}, Weight: 0.5},
	}, WithMetrics(m))

	result, err := scorer.Score(context.Background(), testTxn())
	require.NoError(t, err)
	require.Equal(t, 40, result.RiskScore)

	var sample dto.Metric
	require.NoError(t, m.RiskScore.Write(&sample))
	assert.Equal(t, uint64(1), sample.Histogram.GetSampleCount())
	assert.Equal(t, float64(40), sample.Histogram.GetSampleSum())
}
