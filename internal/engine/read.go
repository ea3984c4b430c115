package engine

import (
	"context"
	"io"

	"attest/internal/audittrail"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/incident"
	"attest/internal/compliance/monitor"
	"attest/internal/compliance/remediation"
	"attest/internal/compliance/report"
	"attest/internal/records"
	"attest/internal/records/export"
	"attest/internal/retention"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
)

// Search returns matching records newest first.
func (e *Engine) Search(ctx context.Context, c records.Criteria) ([]*records.LogRecord, error) {
	return e.records.Search(ctx, c)
}

// Export writes matching records to w in format. A cancelled context
// aborts serialization with the context error.
func (e *Engine) Export(ctx context.Context, w io.Writer, format export.Format, c records.Criteria) error {
	recs, err := e.records.Search(ctx, c)
	if err != nil {
		return err
	}
	return export.Write(ctx, w, format, recs)
}

// AuditEvents returns buffered audit events, newest first.
func (e *Engine) AuditEvents(f audittrail.Filter) []*audittrail.Event {
	return e.trail.Events(f)
}

// GenerateComplianceReport builds a report over period.
func (e *Engine) GenerateComplianceReport(ctx context.Context, period report.Period) (*report.Report, error) {
	return e.reports.Generate(ctx, period)
}

// Assess runs a compliance assessment for one regulation.
func (e *Engine) Assess(ctx context.Context, regulationID string) (*assessment.Assessment, error) {
	return e.assessments.Assess(ctx, regulationID)
}

// GetAssessments returns assessment history; an empty id returns every regulation's.
func (e *Engine) GetAssessments(regulationID string) []*assessment.Assessment {
	return e.assessments.GetAssessments(regulationID)
}

// RemediationPlan returns the plan from the latest assessment of a regulation.
func (e *Engine) RemediationPlan(regulationID string) (*remediation.Plan, error) {
	if _, ok := e.catalog.Get(regulationID); !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown regulation: "+regulationID)
	}
	latest, ok := e.assessments.Latest(regulationID)
	if !ok || latest.RemediationPlan == nil {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "regulation has not been assessed")
	}
	return latest.RemediationPlan, nil
}

// ReportIncident opens a compliance incident.
func (e *Engine) ReportIncident(ctx context.Context, in incident.Input) (*incident.Incident, error) {
	if _, ok := e.catalog.Get(in.Regulation); !ok && in.Regulation != "" {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown regulation: "+in.Regulation)
	}
	return e.incidents.Report(ctx, in)
}

// UpdateIncident applies a partial update. Status may only move forward.
func (e *Engine) UpdateIncident(ctx context.Context, id string, p incident.Patch) (*incident.Incident, error) {
	return e.incidents.Update(ctx, id, p)
}

// GetIncident returns one incident.
func (e *Engine) GetIncident(id string) (*incident.Incident, error) {
	return e.incidents.Get(id)
}

// GetIncidents lists incidents oldest first; an empty status lists all.
func (e *Engine) GetIncidents(status incident.Status) []*incident.Incident {
	return e.incidents.List(status)
}

// ForgetSubject erases a data subject.
func (e *Engine) ForgetSubject(ctx context.Context, subjectID string) (*retention.ErasureResult, error) {
	return e.retention.ForgetSubject(ctx, subjectID)
}

// RunCleanup runs retention cleanup now.
func (e *Engine) RunCleanup(ctx context.Context) (*retention.CleanupResult, error) {
	return e.retention.RunCleanup(ctx)
}

// CheckControls runs every registered probe once, as the hourly monitor does.
func (e *Engine) CheckControls(ctx context.Context) []monitor.ProbeResult {
	return e.monitor.Check(ctx)
}
