package records

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers ingestion and query step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &recordSteps{tc: tc}

	// Ingestion
	ctx.Step(`^I log an? "([^"]*)" record in category "([^"]*)" with message "([^"]*)"$`, steps.logRecord)
	ctx.Step(`^I record audit action "([^"]*)" on "([^"]*)" for subject "([^"]*)"$`, steps.recordAudit)
	ctx.Step(`^I record a "([^"]*)" of "([^"]*)" data for subject "([^"]*)"$`, steps.recordDataAccess)
	ctx.Step(`^I report a "([^"]*)" security event "([^"]*)"$`, steps.reportSecurity)

	// Queries
	ctx.Step(`^I search records in category "([^"]*)"$`, steps.searchCategory)
	ctx.Step(`^I search records mentioning "([^"]*)"$`, steps.searchText)
	ctx.Step(`^I export records as "([^"]*)"$`, steps.export)
}

type recordSteps struct {
	tc TestContext
}

func (s *recordSteps) logRecord(ctx context.Context, level, category, message string) error {
	return s.tc.POST("/v1/logs", map[string]interface{}{
		"level":    level,
		"category": category,
		"message":  message,
	})
}

func (s *recordSteps) recordAudit(ctx context.Context, action, resource, subject string) error {
	return s.tc.POST("/v1/audit", map[string]interface{}{
		"action":        action,
		"resource_type": resource,
		"subject_id":    subject,
		"outcome":       "success",
	})
}

func (s *recordSteps) recordDataAccess(ctx context.Context, operation, dataType, subject string) error {
	s.tc.Save("subject", subject)
	return s.tc.POST("/v1/data-access", map[string]interface{}{
		"subject_id": subject,
		"data_type":  dataType,
		"operation":  operation,
		"purpose":    "e2e",
	})
}

func (s *recordSteps) reportSecurity(ctx context.Context, severity, event string) error {
	return s.tc.POST("/v1/security", map[string]interface{}{
		"event":    event,
		"severity": severity,
	})
}

func (s *recordSteps) searchCategory(ctx context.Context, category string) error {
	return s.tc.GET("/v1/records?category="+url.QueryEscape(category), nil)
}

func (s *recordSteps) searchText(ctx context.Context, text string) error {
	return s.tc.GET("/v1/records?q="+url.QueryEscape(text), nil)
}

func (s *recordSteps) export(ctx context.Context, format string) error {
	if format == "" {
		return fmt.Errorf("format is required")
	}
	return s.tc.GET("/v1/records/export?format="+url.QueryEscape(format), nil)
}
