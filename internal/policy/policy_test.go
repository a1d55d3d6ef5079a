package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"txgate/internal/reviewconfig"
	id "txgate/pkg/domain"
)

func testConfig() *reviewconfig.ReviewConfig {
	return &reviewconfig.ReviewConfig{
		Version:               3,
		AutoProcessingEnabled: true,
		Thresholds: reviewconfig.Thresholds{
			Amount:          5000,
			RiskScore:       30,
			FraudConfidence: 20,
		},
		RoleRules: map[id.Role]reviewconfig.RoleRule{
			"accountant": {AutoApprove: true, MaxAmount: 10000},
			"intern":     {AutoApprove: false},
			"cfo":        {AutoApprove: true, BypassReview: true},
		},
		MandatoryCases: map[id.CaseKind]bool{
			id.CaseNewVendor: true,
		},
	}
}

func testTxn() id.TransactionContext {
	return id.TransactionContext{
		ID:              id.TransactionID(uuid.New()),
		OrganizationID:  id.OrganizationID(uuid.New()),
		Amount:          3000,
		Currency:        "USD",
		SubmitterRole:   "accountant",
		RiskScore:       25,
		FraudConfidence: 10,
	}
}

func TestDecide_WorkedExamples(t *testing.T) {
	e := NewEvaluator(DefaultTuning())
	cfg := testConfig()

	t.Run("clean transaction auto-approves", func(t *testing.T) {
		d := e.Decide(testTxn(), cfg)
		assert.False(t, d.RequiresReview)
		assert.Equal(t, id.ReasonAutoApproved, d.Reason)
		assert.Equal(t, int64(3), d.ConfigVersion)
	})

	t.Run("amount over threshold requires review at medium", func(t *testing.T) {
		txn := testTxn()
		txn.Amount = 7000
		d := e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonAmountExceeded, d.Reason)
		assert.Equal(t, id.PriorityMedium, d.Priority)
	})

	t.Run("amount over twice the threshold escalates to high", func(t *testing.T) {
		txn := testTxn()
		txn.Amount = 11000
		d := e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonAmountExceeded, d.Reason)
		assert.Equal(t, id.PriorityHigh, d.Priority)
	})
}

// Mandatory cases outrank every numeric threshold, even all-zero scores.
func TestDecide_MandatoryCasePrecedence(t *testing.T) {
	e := NewEvaluator(DefaultTuning())
	cfg := testConfig()

	txn := testTxn()
	txn.Amount = 100
	txn.RiskScore = 0
	txn.FraudConfidence = 0
	txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}

	d := e.Decide(txn, cfg)
	assert.True(t, d.RequiresReview)
	assert.Equal(t, id.ReasonMandatoryCase, d.Reason)
	assert.Equal(t, id.PriorityHigh, d.Priority)
	assert.Equal(t, []id.CaseKind{id.CaseNewVendor}, d.MatchedCases)
}

func TestDecide_MandatoryCaseEscalation(t *testing.T) {
	e := NewEvaluator(DefaultTuning())
	cfg := testConfig()

	txn := testTxn()
	txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}
	txn.FraudConfidence = 81

	d := e.Decide(txn, cfg)
	assert.Equal(t, id.ReasonMandatoryCase, d.Reason)
	assert.Equal(t, id.PriorityCritical, d.Priority)
}

func TestDecide_PrecedenceLadder(t *testing.T) {
	e := NewEvaluator(DefaultTuning())

	t.Run("disabled auto-processing wins over everything", func(t *testing.T) {
		cfg := testConfig()
		cfg.AutoProcessingEnabled = false
		txn := testTxn()
		txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}
		txn.Amount = 1_000_000

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonAutoProcessingDisabled, d.Reason)
		assert.Equal(t, id.PriorityMedium, d.Priority)
	})

	t.Run("mandatory case wins over amount", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}
		txn.Amount = 1_000_000

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonMandatoryCase, d.Reason)
	})

	t.Run("unconfigured mandatory case does not trigger", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.MandatoryCases = []id.CaseKind{id.CaseCrossBorderTransfer}

		d := e.Decide(txn, cfg)
		assert.False(t, d.RequiresReview)
	})

	t.Run("amount wins over risk score", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.Amount = 7000
		txn.RiskScore = 99

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonAmountExceeded, d.Reason)
	})

	t.Run("high risk at high priority", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.RiskScore = 50

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonHighRisk, d.Reason)
		assert.Equal(t, id.PriorityHigh, d.Priority)
	})

	t.Run("risk score above critical cutoff escalates", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.RiskScore = 86

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonHighRisk, d.Reason)
		assert.Equal(t, id.PriorityCritical, d.Priority)
	})

	t.Run("fraud confidence is always critical", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.FraudConfidence = 21

		d := e.Decide(txn, cfg)
		assert.Equal(t, id.ReasonHighFraudConfidence, d.Reason)
		assert.Equal(t, id.PriorityCritical, d.Priority)
	})
}

func TestDecide_RoleRules(t *testing.T) {
	e := NewEvaluator(DefaultTuning())

	t.Run("role without auto-approve requires review", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.SubmitterRole = "intern"

		d := e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonRoleRestricted, d.Reason)
		assert.Equal(t, id.PriorityMedium, d.Priority)
	})

	t.Run("unconfigured role is restricted", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.SubmitterRole = "contractor"

		d := e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonRoleRestricted, d.Reason)
	})

	t.Run("amount above role cap requires review", func(t *testing.T) {
		cfg := testConfig()
		cfg.Thresholds.Amount = 50000
		txn := testTxn()
		txn.Amount = 20000 // under org threshold, over accountant cap

		d := e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonRoleRestricted, d.Reason)
	})

	t.Run("bypass role ignores role cap but not thresholds", func(t *testing.T) {
		cfg := testConfig()
		txn := testTxn()
		txn.SubmitterRole = "cfo"

		d := e.Decide(txn, cfg)
		assert.False(t, d.RequiresReview)

		txn.Amount = 7000 // over the org amount threshold
		d = e.Decide(txn, cfg)
		assert.True(t, d.RequiresReview)
		assert.Equal(t, id.ReasonAmountExceeded, d.Reason)
	})
}

// Determinism: identical inputs always produce the identical decision.
func TestDecide_Deterministic(t *testing.T) {
	e := NewEvaluator(DefaultTuning())
	cfg := testConfig()
	txn := testTxn()
	txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}
	txn.FraudConfidence = 85

	first := e.Decide(txn, cfg)
	for range 100 {
		assert.Equal(t, first, e.Decide(txn, cfg))
	}
}
