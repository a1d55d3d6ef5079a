package risk

import (
	"context"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// ErrScoringUnavailable is returned when every layer failed. The caller must
// treat the transaction as maximum risk, never as risk zero.
var ErrScoringUnavailable = dErrors.New(dErrors.CodeUnavailable, "all risk layers failed")

// LayerScore is the output of one scoring layer.
type LayerScore struct {
	// Score is the layer's risk subscore in [0,100].
	Score int
	// FraudSignal is the layer's fraud confidence estimate in [0,100].
	// Layers without a fraud opinion report 0.
	FraudSignal int
}

// Layer is one pluggable scoring signal source. Evaluate must respect context
// cancellation; a layer that overruns the scorer's join timeout is treated as
// failed and its weight redistributed.
type Layer interface {
	Name() string
	Evaluate(ctx context.Context, txn id.TransactionContext) (LayerScore, error)
}

// Result is the aggregated scoring outcome.
type Result struct {
	RiskScore       int
	FraudConfidence int

	// Subscores maps layer name to its subscore, successful layers only.
	Subscores map[string]int
	// FailedLayers names layers that errored or timed out.
	FailedLayers []string
}

// Degraded reports whether at least one layer failed.
func (r Result) Degraded() bool { return len(r.FailedLayers) > 0 }
