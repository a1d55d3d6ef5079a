package reviewconfig

import (
	"time"

	id "txgate/pkg/domain"
)

// Scope identifies which transactions a config governs. Branch is optional;
// resolution falls back from (org, branch, country) to (org, country) to
// (org) so a branch-level config overrides the organization default.
type Scope struct {
	OrganizationID id.OrganizationID
	BranchID       id.BranchID // zero = organization-wide
	Country        string      // empty = all countries
}

// Key returns a stable map key for the scope.
func (s Scope) Key() string {
	return s.OrganizationID.String() + "/" + s.BranchID.String() + "/" + s.Country
}

// Thresholds are the numeric cutoffs above which a transaction requires
// review. Amount is in minor units of the transaction currency.
type Thresholds struct {
	Amount          int64 `json:"amount"`
	RiskScore       int   `json:"risk_score"`
	FraudConfidence int   `json:"fraud_confidence"`
}

// RoleRule constrains what a submitter role may auto-process.
// MaxAmount <= 0 means the role has no amount cap. BypassReview exempts the
// role from the role-restriction check only; mandatory cases and numeric
// thresholds still apply.
type RoleRule struct {
	AutoApprove  bool  `json:"auto_approve"`
	MaxAmount    int64 `json:"max_amount"`
	BypassReview bool  `json:"bypass_review"`
}

// ReviewConfig is the versioned policy for one scope.
//
// Snapshots are immutable: readers receive a pointer that is never mutated
// after publication, and every update replaces the whole value with Version
// incremented. A Decide call that holds a snapshot is unaffected by
// concurrent updates.
type ReviewConfig struct {
	Scope   Scope
	Version int64

	AutoProcessingEnabled bool
	Thresholds            Thresholds
	RoleRules             map[id.Role]RoleRule
	MandatoryCases        map[id.CaseKind]bool

	LastModifiedBy id.ReviewerID
	LastModifiedAt time.Time
}

// Clone returns a deep copy, used by updates to build the next version
// without touching the published snapshot.
func (c *ReviewConfig) Clone() *ReviewConfig {
	next := *c
	next.RoleRules = make(map[id.Role]RoleRule, len(c.RoleRules))
	for role, rule := range c.RoleRules {
		next.RoleRules[role] = rule
	}
	next.MandatoryCases = make(map[id.CaseKind]bool, len(c.MandatoryCases))
	for kind := range c.MandatoryCases {
		next.MandatoryCases[kind] = true
	}
	return &next
}

// IsMandatory reports whether the case kind always requires review.
func (c *ReviewConfig) IsMandatory(kind id.CaseKind) bool {
	return c.MandatoryCases[kind]
}

// RoleRuleFor returns the rule for a role. ok=false means the role is not
// configured; the evaluator treats that as restricted (fail-safe).
func (c *ReviewConfig) RoleRuleFor(role id.Role) (RoleRule, bool) {
	rule, ok := c.RoleRules[role]
	return rule, ok
}

// Disabled returns a config with auto-processing off for the scope. Used as
// the fail-safe when no config exists: every transaction routes to review.
func Disabled(scope Scope) *ReviewConfig {
	return &ReviewConfig{
		Scope:                 scope,
		Version:               0,
		AutoProcessingEnabled: false,
		RoleRules:             map[id.Role]RoleRule{},
		MandatoryCases:        map[id.CaseKind]bool{},
	}
}
