package compliance

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	AdminPOST(path string, body interface{}) error
	PATCH(path string, body interface{}, headers map[string]string) error
	GET(path string, headers map[string]string) error
	AdminHeaders() map[string]string
	GetResponseField(field string) (interface{}, error)
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers assessment, incident and erasure step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &complianceSteps{tc: tc}

	// Assessments
	ctx.Step(`^I assess regulation "([^"]*)"$`, steps.assess)
	ctx.Step(`^I request the remediation plan for "([^"]*)"$`, steps.remediation)
	ctx.Step(`^I generate the compliance report$`, steps.report)

	// Incidents
	ctx.Step(`^I report a "([^"]*)" "([^"]*)" incident under "([^"]*)"$`, steps.reportIncident)
	ctx.Step(`^I save the incident id$`, steps.saveIncidentID)
	ctx.Step(`^I move the incident to "([^"]*)" without a token$`, steps.moveIncidentAnonymous)
	ctx.Step(`^I move the incident to "([^"]*)" as compliance officer$`, steps.moveIncident)

	// Erasure
	ctx.Step(`^I erase subject "([^"]*)" as compliance officer$`, steps.eraseSubject)
}

type complianceSteps struct {
	tc TestContext
}

func (s *complianceSteps) assess(ctx context.Context, regulation string) error {
	return s.tc.POST("/v1/assessments/"+regulation, nil)
}

func (s *complianceSteps) remediation(ctx context.Context, regulation string) error {
	return s.tc.GET("/v1/remediation/"+regulation, nil)
}

func (s *complianceSteps) report(ctx context.Context) error {
	return s.tc.GET("/v1/reports/compliance", nil)
}

func (s *complianceSteps) reportIncident(ctx context.Context, severity, kind, regulation string) error {
	return s.tc.POST("/v1/incidents", map[string]interface{}{
		"regulation":  regulation,
		"type":        kind,
		"severity":    severity,
		"description": "reported by e2e scenario",
	})
}

func (s *complianceSteps) saveIncidentID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	str, ok := id.(string)
	if !ok || str == "" {
		return fmt.Errorf("incident id missing")
	}
	s.tc.Save("incident", str)
	return nil
}

func (s *complianceSteps) moveIncidentAnonymous(ctx context.Context, status string) error {
	return s.tc.PATCH("/v1/incidents/"+s.tc.Saved("incident"), map[string]interface{}{"status": status}, nil)
}

func (s *complianceSteps) moveIncident(ctx context.Context, status string) error {
	return s.tc.PATCH("/v1/incidents/"+s.tc.Saved("incident"), map[string]interface{}{"status": status}, s.tc.AdminHeaders())
}

func (s *complianceSteps) eraseSubject(ctx context.Context, subject string) error {
	return s.tc.AdminPOST("/v1/subjects/"+subject+"/forget", nil)
}
