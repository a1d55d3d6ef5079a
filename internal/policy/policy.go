// Package policy decides whether a transaction may be processed automatically
// or must be reviewed by a human. Decide is a pure function: identical inputs
// always yield the identical decision, so policy changes are testable without
// any infrastructure.
package policy

import (
	"txgate/internal/reviewconfig"
	id "txgate/pkg/domain"
)

// Decision is the outcome of evaluating one transaction against one config
// snapshot.
type Decision struct {
	RequiresReview bool
	Reason         id.Reason
	Priority       id.Priority

	// ConfigVersion records which config snapshot produced the decision, so
	// later config edits never retroactively change what was decided.
	ConfigVersion int64

	// MatchedCases lists the mandatory case flags that triggered review,
	// empty otherwise.
	MatchedCases []id.CaseKind
}

// Tuning holds the escalation cutoffs. The defaults implement the documented
// policy; deployments tuned against real traffic may override them.
type Tuning struct {
	// CriticalFraudConfidence escalates a mandatory-case review to critical.
	CriticalFraudConfidence int
	// CriticalRiskScore escalates a high-risk review to critical.
	CriticalRiskScore int
	// HighAmountMultiple escalates an amount-exceeded review from medium to
	// high when amount > multiple × threshold.
	HighAmountMultiple float64
}

// DefaultTuning returns the standard escalation cutoffs.
func DefaultTuning() Tuning {
	return Tuning{
		CriticalFraudConfidence: 80,
		CriticalRiskScore:       85,
		HighAmountMultiple:      2.0,
	}
}

// Evaluator applies the review policy. It is stateless and safe for
// concurrent use.
type Evaluator struct {
	tuning Tuning
}

// NewEvaluator constructs an evaluator with the given tuning.
func NewEvaluator(tuning Tuning) *Evaluator {
	return &Evaluator{tuning: tuning}
}

// Decide evaluates the precedence ladder, first match wins:
//
//  1. auto-processing disabled
//  2. mandatory case
//  3. amount threshold
//  4. risk score threshold
//  5. fraud confidence threshold
//  6. role restriction
//  7. otherwise auto-approve
//
// Mandatory cases outrank numeric thresholds even when amount and scores are
// low. That ordering is deliberate policy, not an accident of implementation.
func (e *Evaluator) Decide(txn id.TransactionContext, cfg *reviewconfig.ReviewConfig) Decision {
	d := Decision{ConfigVersion: cfg.Version}

	// 1. Kill switch: everything goes to a human.
	if !cfg.AutoProcessingEnabled {
		return review(d, id.ReasonAutoProcessingDisabled, id.PriorityMedium)
	}

	// 2. Mandatory cases.
	if matched := e.matchMandatoryCases(txn, cfg); len(matched) > 0 {
		d.MatchedCases = matched
		priority := id.PriorityHigh
		if txn.FraudConfidence > e.tuning.CriticalFraudConfidence {
			priority = id.PriorityCritical
		}
		return review(d, id.ReasonMandatoryCase, priority)
	}

	// 3. Amount threshold, priority scaled by how far over it is.
	if txn.Amount > cfg.Thresholds.Amount {
		priority := id.PriorityMedium
		if float64(txn.Amount) > e.tuning.HighAmountMultiple*float64(cfg.Thresholds.Amount) {
			priority = id.PriorityHigh
		}
		return review(d, id.ReasonAmountExceeded, priority)
	}

	// 4. Risk score threshold.
	if txn.RiskScore > cfg.Thresholds.RiskScore {
		priority := id.PriorityHigh
		if txn.RiskScore > e.tuning.CriticalRiskScore {
			priority = id.PriorityCritical
		}
		return review(d, id.ReasonHighRisk, priority)
	}

	// 5. Fraud confidence threshold.
	if txn.FraudConfidence > cfg.Thresholds.FraudConfidence {
		return review(d, id.ReasonHighFraudConfidence, id.PriorityCritical)
	}

	// 6. Role restriction. An unconfigured role is restricted (fail-safe).
	rule, ok := cfg.RoleRuleFor(txn.SubmitterRole)
	if !ok {
		return review(d, id.ReasonRoleRestricted, id.PriorityMedium)
	}
	if !rule.BypassReview {
		if !rule.AutoApprove {
			return review(d, id.ReasonRoleRestricted, id.PriorityMedium)
		}
		if rule.MaxAmount > 0 && txn.Amount > rule.MaxAmount {
			return review(d, id.ReasonRoleRestricted, id.PriorityMedium)
		}
	}

	// 7. Auto-approve.
	d.RequiresReview = false
	d.Reason = id.ReasonAutoApproved
	return d
}

func (e *Evaluator) matchMandatoryCases(txn id.TransactionContext, cfg *reviewconfig.ReviewConfig) []id.CaseKind {
	var matched []id.CaseKind
	for _, kind := range txn.MandatoryCases {
		if cfg.IsMandatory(kind) {
			matched = append(matched, kind)
		}
	}
	return matched
}

func review(d Decision, reason id.Reason, priority id.Priority) Decision {
	d.RequiresReview = true
	d.Reason = reason
	d.Priority = priority
	return d
}
