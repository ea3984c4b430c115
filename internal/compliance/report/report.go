// Package report builds the periodic compliance report from the event
// store, the latest assessments and open incidents.
package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attest/internal/compliance/assessment"
	"attest/internal/compliance/catalog"
	"attest/internal/compliance/incident"
	"attest/internal/records"
	"attest/internal/retention"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/strings"
	"attest/pkg/requestcontext"
)

// StatusNotAssessed marks a regulation with no assessment yet.
const StatusNotAssessed = string(assessment.StatusNotAssessed)

// RecordSource is the read side of the event store.
type RecordSource interface {
	Search(ctx context.Context, c records.Criteria) ([]*records.LogRecord, error)
}

// AssessmentSource returns the latest assessment per regulation.
type AssessmentSource interface {
	Latest(regulationID string) (*assessment.Assessment, bool)
}

// IncidentSource lists incidents, optionally by status.
type IncidentSource interface {
	List(status incident.Status) []*incident.Incident
}

// Period bounds the records a report covers. Zero bounds are open.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RetentionCompliance summarizes retention posture over the period.
type RetentionCompliance struct {
	Compliant   bool `json:"compliant"`
	Violations  int  `json:"violations"`
	PolicyCount int  `json:"policy_count"`
}

// RegulationCompliance is the latest standing of one regulation.
type RegulationCompliance struct {
	Score      float64    `json:"score"`
	Status     string     `json:"status"`
	AssessedAt *time.Time `json:"assessed_at,omitempty"`
}

// Violation is an unresolved incident or a non-compliant assessment.
type Violation struct {
	Source       string    `json:"source"`
	ID           string    `json:"id"`
	RegulationID string    `json:"regulation_id"`
	Severity     string    `json:"severity,omitempty"`
	Description  string    `json:"description"`
	At           time.Time `json:"at"`
}

const (
	violationIncident   = "incident"
	violationAssessment = "assessment"
)

// Report is a compliance report over a period.
type Report struct {
	GeneratedAt          time.Time                       `json:"generated_at"`
	Period               Period                          `json:"period"`
	TotalEvents          int                             `json:"total_events"`
	AuditEvents          int                             `json:"audit_events"`
	SecurityIncidents    int                             `json:"security_incidents"`
	DataAccessEvents     int                             `json:"data_access_events"`
	RetentionCompliance  RetentionCompliance             `json:"retention_compliance"`
	RegulatoryCompliance map[string]RegulationCompliance `json:"regulatory_compliance"`
	Violations           []Violation                     `json:"violations"`
	Recommendations      []string                        `json:"recommendations"`
}

// Generator assembles reports.
type Generator struct {
	records     RecordSource
	assessments AssessmentSource
	incidents   IncidentSource
	catalog     *catalog.Catalog
	policy      retention.Policy
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPolicy sets the retention policy violations are judged against.
func WithPolicy(p retention.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

// New creates a generator.
func New(recs RecordSource, assessments AssessmentSource, incidents IncidentSource, cat *catalog.Catalog, opts ...Option) (*Generator, error) {
	if recs == nil || assessments == nil || incidents == nil || cat == nil {
		return nil, errors.New("records, assessments, incidents and catalog are required")
	}
	g := &Generator{
		records:     recs,
		assessments: assessments,
		incidents:   incidents,
		catalog:     cat,
		policy:      retention.DefaultPolicy(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate builds a report for the period.
func (g *Generator) Generate(ctx context.Context, p Period) (*Report, error) {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return nil, dErrors.New(dErrors.CodeValidation, "period end is before its start")
	}
	now := requestcontext.Now(ctx)

	recs, err := g.records.Search(ctx, records.Criteria{From: p.From, To: p.To})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read records")
	}

	r := &Report{
		GeneratedAt:          now,
		Period:               p,
		TotalEvents:          len(recs),
		RegulatoryCompliance: make(map[string]RegulationCompliance, g.catalog.Len()),
		Violations:           []Violation{},
		Recommendations:      []string{},
	}
	for _, rec := range recs {
		switch rec.Level {
		case records.LevelAudit:
			r.AuditEvents++
		case records.LevelSecurity:
			r.SecurityIncidents++
		}
		if rec.Category == records.CategoryDataAccess {
			r.DataAccessEvents++
		}
		if g.policy.IsViolation(rec, now) {
			r.RetentionCompliance.Violations++
		}
	}
	r.RetentionCompliance.Compliant = r.RetentionCompliance.Violations == 0
	r.RetentionCompliance.PolicyCount = g.policy.Len()

	var advice []string
	for _, regID := range g.catalog.IDs() {
		latest, ok := g.assessments.Latest(regID)
		if !ok {
			r.RegulatoryCompliance[regID] = RegulationCompliance{Status: StatusNotAssessed}
			continue
		}
		at := latest.AssessedAt
		r.RegulatoryCompliance[regID] = RegulationCompliance{
			Score:      latest.OverallScore,
			Status:     string(latest.Status),
			AssessedAt: &at,
		}
		if latest.Status == assessment.StatusNonCompliant {
			r.Violations = append(r.Violations, Violation{
				Source:       violationAssessment,
				ID:           latest.ID,
				RegulationID: regID,
				Description:  "regulation assessed as non-compliant",
				At:           latest.AssessedAt,
			})
		}
		for _, gap := range latest.Gaps {
			advice = append(advice, gap.RemediationAdvice)
		}
	}

	for _, inc := range g.incidents.List("") {
		if inc.Status == incident.StatusResolved || inc.Status == incident.StatusClosed {
			continue
		}
		r.Violations = append(r.Violations, Violation{
			Source:       violationIncident,
			ID:           inc.ID,
			RegulationID: inc.Regulation,
			Severity:     string(inc.Severity),
			Description:  inc.Description,
			At:           inc.Timestamp,
		})
	}

	if deduped := strings.DedupeAndTrim(advice); len(deduped) > 0 {
		r.Recommendations = deduped
	}

	g.logger.InfoContext(ctx, "compliance report generated",
		"total_events", r.TotalEvents,
		"violations", len(r.Violations),
		"retention_violations", r.RetentionCompliance.Violations,
	)
	return r, nil
}
