package risk

import (
	"context"
	"errors"

	"txgate/internal/risk/profile"
	id "txgate/pkg/domain"
)

// BehavioralLayer scores deviation from the submitter's historical spending
// profile. No history is itself a signal: a first transaction from an unknown
// submitter cannot be vouched for.
type BehavioralLayer struct {
	profiles profile.Store
}

// NewBehavioralLayer constructs the behavioral layer.
func NewBehavioralLayer(profiles profile.Store) *BehavioralLayer {
	return &BehavioralLayer{profiles: profiles}
}

func (l *BehavioralLayer) Name() string { return "behavioral" }

// Score for an unknown submitter. Moderate rather than maximal: new
// submitters are unvetted, not proven bad.
const unknownSubmitterScore = 50

func (l *BehavioralLayer) Evaluate(ctx context.Context, txn id.TransactionContext) (LayerScore, error) {
	p, err := l.profiles.SubmitterProfile(ctx, txn.OrganizationID, txn.SubmitterID)
	if err != nil {
		if errors.Is(err, profile.ErrNoProfile) {
			return LayerScore{Score: unknownSubmitterScore}, nil
		}
		return LayerScore{}, err
	}

	if p.TransactionCount == 0 || p.AvgAmount <= 0 {
		return LayerScore{Score: unknownSubmitterScore}, nil
	}

	// Deviation ratio against the historical average: 1x → 0 points,
	// 5x and beyond → full 100.
	ratio := float64(txn.Amount) / float64(p.AvgAmount)
	var score int
	switch {
	case ratio <= 1:
		score = 0
	case ratio >= 5:
		score = 100
	default:
		score = int((ratio - 1) / 4 * 100)
	}

	// A transaction above the submitter's historical maximum is suspicious
	// even when the average ratio looks tame.
	if p.MaxAmount > 0 && txn.Amount > p.MaxAmount {
		score = max(score, 40)
	}

	return LayerScore{Score: min(score, 100)}, nil
}
