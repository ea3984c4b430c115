package audittrail

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"attest/internal/alerting"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/requestcontext"
)

// auditRetentionDays is the retention floor stamped on every audit record.
const auditRetentionDays = 2555

var validate = validator.New(validator.WithRequiredStructEnabled())

// RecordAppender stores the log record that mirrors each audit event.
type RecordAppender interface {
	Append(ctx context.Context, r *records.LogRecord) (*records.LogRecord, error)
}

// Trail records audit events with a computed risk level.
type Trail struct {
	records   RecordAppender
	buffer    *Buffer
	publisher alerting.Publisher
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

// WithPublisher sets where security alerts go.
func WithPublisher(p alerting.Publisher) Option {
	return func(t *Trail) {
		if p != nil {
			t.publisher = p
		}
	}
}

// WithCapacity bounds the in-memory event buffer.
func WithCapacity(capacity int) Option {
	return func(t *Trail) { t.buffer = NewBuffer(capacity) }
}

// New creates a trail that mirrors events into recs.
func New(recs RecordAppender, opts ...Option) (*Trail, error) {
	if recs == nil {
		return nil, errors.New("record appender is required")
	}
	t := &Trail{
		records:   recs,
		buffer:    NewBuffer(DefaultBufferCapacity),
		publisher: alerting.Discard,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Record validates in and stores the resulting event. Failing to write the
// mirrored log record is logged; the event is still kept.
func (t *Trail) Record(ctx context.Context, in Input) (*Event, error) {
	if err := validate.Struct(in); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid audit input")
	}
	if !in.Outcome.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid outcome: "+string(in.Outcome))
	}
	if strings.TrimSpace(in.Action) == "" || strings.TrimSpace(in.ResourceType) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "action and resource type must not be blank")
	}

	ev := &Event{
		ID:           uuid.NewString(),
		Timestamp:    requestcontext.Now(ctx),
		Action:       in.Action,
		ResourceType: in.ResourceType,
		ResourceID:   in.ResourceID,
		SubjectID:    in.SubjectID,
		Outcome:      in.Outcome,
		Details:      in.Details.Clone(),
		OriginIP:     in.Origin.IP,
		OriginAgent:  in.Origin.Agent,
		RiskLevel:    ComputeRisk(in.Action, in.Outcome),
		Regulations:  DeriveRegulations(in.ResourceType, in.Action),
		RequestID:    requestcontext.RequestID(ctx),
		ActorID:      requestcontext.ActorID(ctx),
	}
	if ev.OriginIP == "" {
		ev.OriginIP = requestcontext.ClientIP(ctx)
	}
	if ev.OriginAgent == "" {
		ev.OriginAgent = requestcontext.Device(ctx)
	}
	if ev.OriginAgent == "" {
		ev.OriginAgent = requestcontext.UserAgent(ctx)
	}

	if _, err := t.records.Append(ctx, toRecord(ev)); err != nil {
		t.logger.ErrorContext(ctx, "failed to store audit record",
			"event_id", ev.ID,
			"action", ev.Action,
			"error", err,
		)
	}

	if dropped := t.buffer.Append(ev); dropped > 0 {
		if t.metrics != nil {
			t.metrics.BufferDropped.Add(float64(dropped))
		}
		t.logger.WarnContext(ctx, "audit buffer full, dropped oldest events", "dropped", dropped)
	}
	if t.metrics != nil {
		t.metrics.IncEvent(ev.RiskLevel, ev.Outcome)
		t.metrics.BufferSize.Set(float64(t.buffer.Len()))
	}

	if ev.RiskLevel.Elevated() {
		t.alert(ctx, ev)
	}
	return ev.clone(), nil
}

func (t *Trail) alert(ctx context.Context, ev *Event) {
	severity := alerting.SeverityHigh
	if ev.RiskLevel == RiskCritical {
		severity = alerting.SeverityCritical
	}
	n := alerting.New(alerting.KindSecurityAlert, severity,
		"high-risk audit event: "+ev.Action+" on "+ev.ResourceType, ev.Timestamp)
	n.Category = records.CategoryAudit
	n.Payload = ev.clone()
	t.publisher.Publish(n)

	t.logger.WarnContext(ctx, "high-risk audit event",
		"event_id", ev.ID,
		"action", ev.Action,
		"risk_level", ev.RiskLevel,
		"outcome", ev.Outcome,
	)
}

func toRecord(ev *Event) *records.LogRecord {
	md := records.Metadata{
		"action":        records.String(ev.Action),
		"resource_type": records.String(ev.ResourceType),
		"outcome":       records.String(string(ev.Outcome)),
		"risk_level":    records.String(string(ev.RiskLevel)),
		"audit_event":   records.String(ev.ID),
	}
	if ev.ResourceID != "" {
		md["resource_id"] = records.String(ev.ResourceID)
	}
	if ev.OriginIP != "" || ev.OriginAgent != "" {
		md["origin"] = records.Map(map[string]records.Value{
			"ip":    records.String(ev.OriginIP),
			"agent": records.String(ev.OriginAgent),
		})
	}
	if len(ev.Details) > 0 {
		md["details"] = records.Map(ev.Details.Clone())
	}

	return &records.LogRecord{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Level:     records.LevelAudit,
		Category:  records.CategoryAudit,
		Message:   ev.Action + " " + ev.ResourceType + " " + string(ev.Outcome),
		SubjectID: ev.SubjectID,
		Metadata:  md,
		ComplianceTag: &records.ComplianceTag{
			RetentionDays:        auditRetentionDays,
			Classification:       records.ClassificationConfidential,
			Regulations:          append([]string(nil), ev.Regulations...),
			ContainsPersonalData: ev.SubjectID != "",
		},
	}
}

// Events returns copies of matching events, newest first.
func (t *Trail) Events(f Filter) []*Event {
	out := t.buffer.Select(f.matches)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// AnonymizeSubject replaces subjectID on every buffered event and returns
// how many were changed. Risk level and regulations are left untouched.
func (t *Trail) AnonymizeSubject(subjectID string) int {
	if subjectID == "" || subjectID == records.AnonymizedSubject {
		return 0
	}
	n := t.buffer.Update(
		func(e *Event) bool { return e.SubjectID == subjectID },
		func(e *Event) {
			e.SubjectID = records.AnonymizedSubject
			if e.Details == nil {
				e.Details = records.Metadata{}
			}
			e.Details["anonymized"] = records.Bool(true)
		},
	)
	if n > 0 && t.metrics != nil {
		t.metrics.Anonymized.Add(float64(n))
	}
	return n
}

// Len returns the number of buffered events.
func (t *Trail) Len() int {
	return t.buffer.Len()
}

// Dropped returns how many events overflow has discarded.
func (t *Trail) Dropped() int64 {
	return t.buffer.Dropped()
}
