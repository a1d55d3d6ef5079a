package risk

import (
	"context"

	id "txgate/pkg/domain"
)

// RelationReport describes what the relationship graph knows about the
// parties to a transaction.
type RelationReport struct {
	// VendorLinkedToSubmitter is true when the vendor and the submitter share
	// an owner, address, or bank account.
	VendorLinkedToSubmitter bool
	// CircularPaymentDepth is the length of the shortest payment cycle
	// through the vendor, 0 when none exists.
	CircularPaymentDepth int
	// RelatedPartyCount is how many known parties the vendor is connected to
	// inside the organization.
	RelatedPartyCount int
}

// GraphSource answers relationship queries for the relational layer.
type GraphSource interface {
	Relations(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, vendorID string) (RelationReport, error)
}

// RelationalLayer scores network analysis signals: circular payment chains
// and related-party links between submitter and vendor.
type RelationalLayer struct {
	graph GraphSource
}

// NewRelationalLayer constructs the relational layer.
func NewRelationalLayer(graph GraphSource) *RelationalLayer {
	return &RelationalLayer{graph: graph}
}

func (l *RelationalLayer) Name() string { return "relational" }

func (l *RelationalLayer) Evaluate(ctx context.Context, txn id.TransactionContext) (LayerScore, error) {
	report, err := l.graph.Relations(ctx, txn.OrganizationID, txn.SubmitterID, txn.VendorID)
	if err != nil {
		return LayerScore{}, err
	}

	var score LayerScore
	if report.VendorLinkedToSubmitter {
		score.Score += 70
		score.FraudSignal = 75
	}
	if report.CircularPaymentDepth > 0 {
		// Shorter cycles are more damning: A→B→A beats a six-hop loop.
		score.Score += max(60-10*(report.CircularPaymentDepth-2), 20)
	}
	if report.RelatedPartyCount > 3 {
		score.Score += 10
	}

	score.Score = min(score.Score, 100)
	return score, nil
}
