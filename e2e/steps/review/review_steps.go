package review

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/gofrs/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetItemID() string
	GetOrganizationID() string
}

// RegisterSteps registers review-queue step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &reviewSteps{tc: tc}

	ctx.Step(`^I assign the item to myself at version (\d+)$`, steps.assignItem)
	ctx.Step(`^I approve the item with note "([^"]*)" at version (\d+)$`, steps.approveItem)
	ctx.Step(`^I reject the item with note "([^"]*)" at version (\d+)$`, steps.rejectItem)
	ctx.Step(`^I escalate the item with note "([^"]*)" at version (\d+)$`, steps.escalateItem)
	ctx.Step(`^I fetch the item$`, steps.fetchItem)
	ctx.Step(`^I fetch the item history$`, steps.fetchHistory)
	ctx.Step(`^I list the pending queue$`, steps.listQueue)
	ctx.Step(`^the history should contain action "([^"]*)"$`, steps.historyContainsAction)
}

type reviewSteps struct {
	tc TestContext
}

func (s *reviewSteps) assignItem(ctx context.Context, version int) error {
	reviewerID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"reviewer_id": reviewerID.String(),
		"version":     version,
	}
	return s.tc.POST("/queue/"+s.tc.GetItemID()+"/assign", body)
}

func (s *reviewSteps) approveItem(ctx context.Context, note string, version int) error {
	return s.review("approve", note, version)
}

func (s *reviewSteps) rejectItem(ctx context.Context, note string, version int) error {
	return s.review("reject", note, version)
}

func (s *reviewSteps) escalateItem(ctx context.Context, note string, version int) error {
	return s.review("escalate", note, version)
}

func (s *reviewSteps) review(verb, note string, version int) error {
	body := map[string]interface{}{
		"note":    note,
		"version": version,
	}
	return s.tc.POST("/queue/"+s.tc.GetItemID()+"/"+verb, body)
}

func (s *reviewSteps) fetchItem(ctx context.Context) error {
	return s.tc.GET("/queue/"+s.tc.GetItemID(), nil)
}

func (s *reviewSteps) fetchHistory(ctx context.Context) error {
	return s.tc.GET("/queue/"+s.tc.GetItemID()+"/history", nil)
}

func (s *reviewSteps) listQueue(ctx context.Context) error {
	return s.tc.GET("/queue?organization_id="+s.tc.GetOrganizationID(), nil)
}

func (s *reviewSteps) historyContainsAction(ctx context.Context, action string) error {
	v, err := s.tc.GetResponseField("history")
	if err != nil {
		return err
	}
	entries, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("history is not an array: %T", v)
	}
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if entry["action"] == action {
			return nil
		}
	}
	return fmt.Errorf("no history entry with action %q", action)
}
