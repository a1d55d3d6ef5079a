package risk

import (
	"context"
	"strings"
	"time"

	"txgate/internal/risk/profile"
	id "txgate/pkg/domain"
	pkgstrings "txgate/pkg/platform/strings"
)

// Rule layer tuning. These are deterministic pattern checks, so the constants
// are part of the documented behavior.
const (
	// roundAmountUnit flags suspiciously round amounts: exact multiples of
	// 1000 currency units (100000 minor units).
	roundAmountUnit = 100_000

	// velocityWindow and velocityLimit flag unusual submission bursts.
	velocityWindow = 10 * time.Minute
	velocityLimit  = 5
)

// RuleLayer runs deterministic pattern checks: round amounts, submission
// velocity, and vendor blacklist hits.
type RuleLayer struct {
	velocity  profile.VelocityStore
	blacklist map[string]bool
}

// NewRuleLayer constructs the rule-based layer. blacklistedVendors is the
// org-independent vendor deny list, matched case-insensitively.
func NewRuleLayer(velocity profile.VelocityStore, blacklistedVendors []string) *RuleLayer {
	normalized := pkgstrings.DedupeAndTrimLower(blacklistedVendors)
	blacklist := make(map[string]bool, len(normalized))
	for _, v := range normalized {
		blacklist[v] = true
	}
	return &RuleLayer{velocity: velocity, blacklist: blacklist}
}

func (l *RuleLayer) Name() string { return "rule" }

// Evaluate accumulates points per matched pattern. A blacklisted vendor also
// raises the fraud signal: it is the strongest deterministic fraud indicator
// this layer has.
func (l *RuleLayer) Evaluate(ctx context.Context, txn id.TransactionContext) (LayerScore, error) {
	var score LayerScore

	if l.blacklist[strings.ToLower(txn.VendorID)] {
		score.Score += 60
		score.FraudSignal = 90
	}

	if txn.Amount > 0 && txn.Amount%roundAmountUnit == 0 {
		score.Score += 20
	}

	if txn.VendorIsNew {
		score.Score += 15
	}

	count, err := l.velocity.RecordAndCount(ctx, txn.OrganizationID, txn.SubmitterID, velocityWindow)
	if err != nil {
		return LayerScore{}, err
	}
	if count > velocityLimit {
		over := count - velocityLimit
		score.Score += min(10+10*over, 40)
	}

	score.Score = min(score.Score, 100)
	return score, nil
}
