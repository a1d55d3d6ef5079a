package domain

import (
	"slices"
	"strings"
	"time"

	dErrors "txgate/pkg/domain-errors"
)

// Role is the submitter's role within the organization. Roles are defined by
// the organization's config, so the set is open; only emptiness is rejected.
type Role string

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "submitter_role cannot be empty")
	}
	return Role(strings.ToLower(s)), nil
}

func (r Role) String() string { return string(r) }

// CaseKind names a transaction category that can be configured as a mandatory
// review case. The set is open per organization; these are the well-known ones.
type CaseKind string

const (
	CaseNewVendor           CaseKind = "new_vendor"
	CaseCrossBorderTransfer CaseKind = "cross_border_transfer"
	CaseExecutiveExpense    CaseKind = "executive_expense"
	CaseRoundAmount         CaseKind = "round_amount"
)

// ParseCaseKind constructs a CaseKind from external input.
func ParseCaseKind(s string) (CaseKind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "case kind cannot be empty")
	}
	return CaseKind(strings.ToLower(s)), nil
}

func (c CaseKind) String() string { return string(c) }

// TransactionContext is the immutable per-decision input. It is created once
// per transaction and never mutated; when the risk scorer fills in scores, a
// new value is derived via WithScores. Amounts are minor units (cents) of
// Currency.
type TransactionContext struct {
	ID             TransactionID
	OrganizationID OrganizationID
	BranchID       BranchID // zero when the transaction is org-scoped
	Country        string
	Amount         int64
	Currency       string
	SubmitterID    ReviewerID
	SubmitterRole  Role
	VendorID       string
	VendorIsNew    bool
	MandatoryCases []CaseKind
	CreatedAt      time.Time

	// Filled by the risk scorer, both in [0,100].
	RiskScore       int
	FraudConfidence int
}

// HasMandatoryCase reports whether the transaction carries the given case flag.
func (t TransactionContext) HasMandatoryCase(kind CaseKind) bool {
	return slices.Contains(t.MandatoryCases, kind)
}

// WithScores derives a new context with risk scores filled in. The receiver
// is unchanged; decisions always evaluate the derived value.
func (t TransactionContext) WithScores(riskScore, fraudConfidence int) TransactionContext {
	t.MandatoryCases = slices.Clone(t.MandatoryCases)
	t.RiskScore = riskScore
	t.FraudConfidence = fraudConfidence
	return t
}

// Validate enforces the construction invariants of a decision input.
func (t TransactionContext) Validate() error {
	if t.ID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "transaction id is required")
	}
	if t.OrganizationID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "organization id is required")
	}
	if t.Amount < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount cannot be negative")
	}
	if t.Currency == "" {
		return dErrors.New(dErrors.CodeValidation, "currency is required")
	}
	if t.SubmitterRole == "" {
		return dErrors.New(dErrors.CodeValidation, "submitter role is required")
	}
	return nil
}
