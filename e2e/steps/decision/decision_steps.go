package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
	"github.com/gofrs/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	PUTAsAdmin(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetOrganizationID() string
	SetItemID(id string)
	SetTransactionID(id string)
}

// RegisterSteps registers decision-engine step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &decisionSteps{tc: tc}

	ctx.Step(`^auto-processing is enabled with amount threshold (\d+)$`, steps.applyConfig)
	ctx.Step(`^I submit a transaction of amount (\d+) as "([^"]*)"$`, steps.submitTransaction)
	ctx.Step(`^I submit a transaction of amount (\d+) as "([^"]*)" with mandatory cases "([^"]*)"$`, steps.submitWithCases)
	ctx.Step(`^I save the queued item id$`, steps.saveQueuedItemID)
}

type decisionSteps struct {
	tc TestContext
}

func (s *decisionSteps) applyConfig(ctx context.Context, amountThreshold int) error {
	body := map[string]interface{}{
		"organization_id": s.tc.GetOrganizationID(),
		"enabled":         true,
		"thresholds": map[string]interface{}{
			"amount":           amountThreshold,
			"risk_score":       70,
			"fraud_confidence": 60,
		},
		"role_rules": map[string]interface{}{
			"accountant": map[string]interface{}{"auto_approve": true},
			"clerk":      map[string]interface{}{"auto_approve": false},
		},
		"mandatory_cases": []string{"cross_border_transfer"},
	}
	return s.tc.PUTAsAdmin("/config", body)
}

func (s *decisionSteps) submitTransaction(ctx context.Context, amount int, role string) error {
	return s.submitWithCases(ctx, amount, role, "")
}

func (s *decisionSteps) submitWithCases(ctx context.Context, amount int, role, cases string) error {
	txnID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	submitterID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	s.tc.SetTransactionID(txnID.String())

	body := map[string]interface{}{
		"transaction_id":  txnID.String(),
		"organization_id": s.tc.GetOrganizationID(),
		"country":         "NL",
		"amount":          amount,
		"currency":        "EUR",
		"submitter_id":    submitterID.String(),
		"submitter_role":  role,
		"vendor_id":       "vendor-e2e",
		"vendor_is_new":   false,
	}
	if cases != "" {
		body["mandatory_cases"] = strings.Split(cases, ",")
	}
	return s.tc.POST("/decisions/evaluate", body)
}

func (s *decisionSteps) saveQueuedItemID(ctx context.Context) error {
	v, err := s.tc.GetResponseField("item_id")
	if err != nil {
		return err
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return fmt.Errorf("item_id is not a non-empty string: %v", v)
	}
	s.tc.SetItemID(id)
	return nil
}
