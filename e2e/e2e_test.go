package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the black-box suite against a deployed gateway.
// Set TXGATE_E2E_URL (plus TXGATE_E2E_TOKEN and TXGATE_E2E_ADMIN_TOKEN)
// to enable it.
func TestFeatures(t *testing.T) {
	if os.Getenv("TXGATE_E2E_URL") == "" {
		t.Skip("TXGATE_E2E_URL not set, skipping e2e suite")
	}

	tc := NewTestContext()

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return c, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
