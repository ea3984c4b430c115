package incident

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"attest/internal/alerting"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// EventIncidentReported is the compliance event logged for each report.
const EventIncidentReported = "incident_report"

var validate = validator.New(validator.WithRequiredStructEnabled())

// RecordAppender stores the compliance event for each report.
type RecordAppender interface {
	Append(ctx context.Context, r *records.LogRecord) (*records.LogRecord, error)
}

// Manager owns incidents in memory.
type Manager struct {
	mu        sync.RWMutex
	incidents map[string]*Incident

	records   RecordAppender
	publisher alerting.Publisher
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPublisher sets where incident notifications go.
func WithPublisher(p alerting.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// NewManager creates a manager that logs reports into recs.
func NewManager(recs RecordAppender, opts ...Option) (*Manager, error) {
	if recs == nil {
		return nil, errors.New("record appender is required")
	}
	m := &Manager{
		incidents: make(map[string]*Incident),
		records:   recs,
		publisher: alerting.Discard,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Report records a new incident. A valid status in the input is honored;
// otherwise the incident starts open.
func (m *Manager) Report(ctx context.Context, in Input) (*Incident, error) {
	if err := validate.Struct(in); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid incident")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "description must not be blank")
	}

	now := requestcontext.Now(ctx)
	inc := &Incident{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Regulation:  in.Regulation,
		Type:        in.Type,
		Severity:    in.Severity,
		Description: in.Description,
		Scope:       in.Scope,
		Status:      StatusOpen,
		ReportedBy:  requestcontext.ActorID(ctx),
		Owner:       in.Owner,
		DetectedAt:  in.DetectedAt,
		UpdatedAt:   now,
	}
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = now
	}
	if in.Status.IsValid() {
		inc.Status = in.Status
		stamp(inc, in.Status, now)
	}

	m.mu.Lock()
	m.incidents[inc.ID] = inc
	m.mu.Unlock()

	m.logReport(ctx, inc)
	return inc.clone(), nil
}

func (m *Manager) logReport(ctx context.Context, inc *Incident) {
	status := "warning"
	if inc.Type == TypeViolation {
		status = "violation"
	}
	rec := records.ComplianceEvent(inc.Regulation, EventIncidentReported, status, records.Metadata{
		"incident_id": records.String(inc.ID),
		"type":        records.String(string(inc.Type)),
		"severity":    records.String(string(inc.Severity)),
		"affected": records.Map(map[string]records.Value{
			"records":  records.Int(inc.Scope.Records),
			"subjects": records.Int(inc.Scope.Subjects),
			"systems":  records.Int(inc.Scope.Systems),
		}),
	})
	rec.Timestamp = inc.Timestamp
	if _, err := m.records.Append(ctx, rec); err != nil {
		m.logger.ErrorContext(ctx, "failed to log incident", "incident_id", inc.ID, "error", err)
	}

	n := alerting.New(alerting.KindIncidentReported, alerting.Severity(inc.Severity),
		string(inc.Type)+" reported for "+inc.Regulation, inc.Timestamp)
	n.Category = records.CategoryCompliance
	n.Payload = inc.clone()
	m.publisher.Publish(n)

	m.logger.WarnContext(ctx, "compliance incident reported",
		"incident_id", inc.ID,
		"regulation", inc.Regulation,
		"type", inc.Type,
		"severity", inc.Severity,
	)
}

// Update applies a partial update. A backward or post-close status change
// is rejected with CodeInvalidState and the incident is left unchanged.
func (m *Manager) Update(ctx context.Context, id string, p Patch) (*Incident, error) {
	if err := validate.Struct(p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid incident patch")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status: "+string(*p.Status))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "incident not found")
	}
	if inc.Status == StatusClosed {
		return nil, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInvalidState, "incident is closed")
	}
	if p.Status != nil && !inc.Status.CanTransitionTo(*p.Status) {
		return nil, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInvalidState,
			"cannot move incident from "+string(inc.Status)+" to "+string(*p.Status))
	}

	now := requestcontext.Now(ctx)
	if p.Status != nil && *p.Status != inc.Status {
		m.logger.InfoContext(ctx, "incident status changed",
			"incident_id", id,
			"from", inc.Status,
			"to", *p.Status,
			"actor_id", requestcontext.ActorID(ctx),
			"actor_role", requestcontext.ActorRole(ctx),
		)
		inc.Status = *p.Status
		stamp(inc, inc.Status, now)
	}
	if p.Severity != nil {
		inc.Severity = *p.Severity
	}
	if p.Description != nil {
		inc.Description = *p.Description
	}
	if p.Owner != nil {
		inc.Owner = *p.Owner
	}
	if p.Scope != nil {
		inc.Scope = *p.Scope
	}
	inc.UpdatedAt = now
	return inc.clone(), nil
}

// stamp records when an incident entered status.
func stamp(inc *Incident, status Status, now time.Time) {
	t := now
	switch status {
	case StatusInvestigating:
		inc.InvestigatedAt = &t
	case StatusContained:
		inc.ContainedAt = &t
	case StatusResolved:
		inc.ResolvedAt = &t
	case StatusClosed:
		inc.ClosedAt = &t
	}
}

// Get returns one incident.
func (m *Manager) Get(id string) (*Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "incident not found")
	}
	return inc.clone(), nil
}

// List returns incidents with the given status (all when empty), oldest first.
func (m *Manager) List(status Status) []*Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		if status == "" || inc.Status == status {
			out = append(out, inc.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// OpenCount returns how many incidents are not closed.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, inc := range m.incidents {
		if inc.Status != StatusClosed {
			n++
		}
	}
	return n
}
