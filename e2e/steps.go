package e2e

import (
	"github.com/cucumber/godog"

	"txgate/e2e/steps/common"
	"txgate/e2e/steps/decision"
	"txgate/e2e/steps/review"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register decision-engine steps
	decision.RegisterSteps(ctx, tc)

	// Register review-queue steps
	review.RegisterSteps(ctx, tc)
}
