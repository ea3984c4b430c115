package e2e

import (
	"github.com/cucumber/godog"

	"attest/e2e/steps/common"
	"attest/e2e/steps/compliance"
	"attest/e2e/steps/records"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (requests, status and field assertions)
	common.RegisterSteps(ctx, tc)

	// Register ingestion and query steps
	records.RegisterSteps(ctx, tc)

	// Register assessment, incident and erasure steps
	compliance.RegisterSteps(ctx, tc)
}
