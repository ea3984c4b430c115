package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against a live server. It needs
// ATTEST_E2E_URL and an admin token in ATTEST_E2E_TOKEN, e.g. from
// `server -token compliance_officer`.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("ATTEST_E2E_URL")
	if baseURL == "" {
		t.Skip("ATTEST_E2E_URL not set")
	}
	tc := NewTestContext(baseURL, os.Getenv("ATTEST_E2E_TOKEN"))

	suite := godog.TestSuite{
		Name: "attest",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
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
		t.Fatal("feature run failed")
	}
}
