// Package monitor runs automated probes between full assessments and emits
// a periodic compliance summary.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"attest/internal/alerting"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/catalog"
	"attest/internal/platform/scheduler"
	"attest/internal/records"
	"attest/pkg/requestcontext"
)

const (
	// alertThreshold is the probe score below which an alert is raised.
	alertThreshold = 70.0
	// highThreshold is the probe score below which the alert is high severity.
	highThreshold = 50.0
)

// Engine is the slice of the assessment engine the monitor reads.
type Engine interface {
	Probes() *assessment.Registry
	ProbeTimeout() time.Duration
	Latest(regulationID string) (*assessment.Assessment, bool)
	CountSince(t time.Time) int
}

// IncidentCounter reports incidents that are not closed.
type IncidentCounter interface {
	OpenCount() int
}

// ProbeResult is one monitored probe run.
type ProbeResult struct {
	RequirementID string  `json:"requirement_id"`
	RegulationID  string  `json:"regulation_id"`
	Score         float64 `json:"score"`
	Error         string  `json:"error,omitempty"`
	Alerted       bool    `json:"alerted"`
}

// Summary is the periodic compliance digest.
type Summary struct {
	GeneratedAt         time.Time `json:"generated_at"`
	Regulations         int       `json:"regulations"`
	AssessedRegulations int       `json:"assessed_regulations"`
	AssessmentsLast24h  int       `json:"assessments_last_24h"`
	OpenIncidents       int       `json:"open_incidents"`
	OverallScore        float64   `json:"overall_score"`
}

// Monitor checks probes and summarizes compliance posture.
type Monitor struct {
	catalog   *catalog.Catalog
	engine    Engine
	incidents IncidentCounter
	publisher alerting.Publisher
	logger    *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPublisher sets where alerts and summaries go.
func WithPublisher(p alerting.Publisher) Option {
	return func(m *Monitor) {
		if p != nil {
			m.publisher = p
		}
	}
}

// New creates a monitor.
func New(cat *catalog.Catalog, engine Engine, incidents IncidentCounter, opts ...Option) (*Monitor, error) {
	if cat == nil || engine == nil || incidents == nil {
		return nil, errors.New("catalog, engine and incident counter are required")
	}
	m := &Monitor{
		catalog:   cat,
		engine:    engine,
		incidents: incidents,
		publisher: alerting.Discard,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Check runs every registered probe once. Scores below 70 raise a
// compliance alert; no gaps are created.
func (m *Monitor) Check(ctx context.Context) []ProbeResult {
	probes := m.engine.Probes()
	now := requestcontext.Now(ctx)
	var results []ProbeResult
	for _, id := range probes.IDs() {
		if ctx.Err() != nil {
			break
		}
		req, ok := m.catalog.Requirement(id)
		if !ok {
			m.logger.WarnContext(ctx, "probe registered for unknown requirement", "requirement", id)
			continue
		}
		regID, _ := m.catalog.RegulationOf(id)
		probe, _ := probes.Get(id)

		res := ProbeResult{RequirementID: id, RegulationID: regID}
		score, err := assessment.RunProbe(ctx, probe, req, m.engine.ProbeTimeout())
		res.Score = score
		if err != nil {
			res.Error = err.Error()
			m.logger.ErrorContext(ctx, "monitored probe failed", "requirement", id, "error", err)
		}
		if score < alertThreshold {
			res.Alerted = true
			m.alert(res, req, now)
		}
		results = append(results, res)
	}
	return results
}

func (m *Monitor) alert(res ProbeResult, req catalog.Requirement, now time.Time) {
	severity := alerting.SeverityMedium
	if res.Score < highThreshold {
		severity = alerting.SeverityHigh
	}
	n := alerting.New(alerting.KindComplianceAlert, severity,
		fmt.Sprintf("%s (%s) scored %.2f", req.Title, res.RegulationID, res.Score), now)
	n.Category = records.CategoryCompliance
	n.Payload = res
	m.publisher.Publish(n)
}

// Summary computes and publishes the compliance digest.
func (m *Monitor) Summary(ctx context.Context) Summary {
	now := requestcontext.Now(ctx)
	s := Summary{
		GeneratedAt:        now,
		Regulations:        m.catalog.Len(),
		AssessmentsLast24h: m.engine.CountSince(now.Add(-24 * time.Hour)),
		OpenIncidents:      m.incidents.OpenCount(),
	}
	var sum float64
	for _, id := range m.catalog.IDs() {
		if a, ok := m.engine.Latest(id); ok {
			sum += a.OverallScore
			s.AssessedRegulations++
		}
	}
	if s.AssessedRegulations > 0 {
		s.OverallScore = sum / float64(s.AssessedRegulations)
	}

	n := alerting.New(alerting.KindComplianceSummary, alerting.SeverityInfo,
		fmt.Sprintf("%d regulations, %d assessments in 24h, %d open incidents, score %.2f",
			s.Regulations, s.AssessmentsLast24h, s.OpenIncidents, s.OverallScore), now)
	n.Category = records.CategoryCompliance
	n.Payload = s
	m.publisher.Publish(n)

	m.logger.InfoContext(ctx, "compliance summary",
		"regulations", s.Regulations,
		"assessments_24h", s.AssessmentsLast24h,
		"open_incidents", s.OpenIncidents,
		"overall_score", s.OverallScore,
	)
	return s
}

// Tasks returns the probe check and summary as scheduler tasks.
func (m *Monitor) Tasks(checkEvery, summaryEvery time.Duration) []scheduler.Task {
	return []scheduler.Task{
		{
			Name:     "compliance-monitor",
			Interval: checkEvery,
			Run: func(ctx context.Context) error {
				m.Check(ctx)
				return nil
			},
		},
		{
			Name:     "compliance-summary",
			Interval: summaryEvery,
			Run: func(ctx context.Context) error {
				m.Summary(ctx)
				return nil
			},
		},
	}
}
