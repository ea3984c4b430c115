package retention

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"attest/internal/alerting"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/requestcontext"
)

// EventRightToBeForgotten is the compliance event logged for every erasure.
const EventRightToBeForgotten = "right_to_be_forgotten"

const erasureRegulation = "gdpr"

// RecordStore is the slice of the record service retention needs.
type RecordStore interface {
	Append(ctx context.Context, r *records.LogRecord) (*records.LogRecord, error)
	Categories(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, category string) ([]*records.LogRecord, error)
	DeleteWhere(ctx context.Context, category string, pred records.Predicate) ([]*records.LogRecord, error)
	UpdateWhere(ctx context.Context, category string, pred records.Predicate, mutate records.Mutator) ([]*records.LogRecord, error)
}

// SubjectAnonymizer rewrites a subject on audit-trail entries.
type SubjectAnonymizer interface {
	AnonymizeSubject(subjectID string) int
}

// CategoryResult is the outcome of cleanup for one category.
type CategoryResult struct {
	Purged        int    `json:"purged"`
	Retained      int    `json:"retained"`
	Violations    int    `json:"violations"`
	ArchiveFailed bool   `json:"archive_failed,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CleanupResult summarizes one cleanup run.
type CleanupResult struct {
	Purged      int                       `json:"purged"`
	Retained    int                       `json:"retained"`
	Violations  int                       `json:"violations"`
	PerCategory map[string]CategoryResult `json:"per_category"`
	StartedAt   time.Time                 `json:"started_at"`
	Duration    time.Duration             `json:"duration"`
}

// ErasureResult summarizes one right-to-be-forgotten request.
// Conflicts counts records that had to be anonymized instead of deleted.
type ErasureResult struct {
	Deleted     int `json:"deleted"`
	Anonymized  int `json:"anonymized"`
	Conflicts   int `json:"conflicts"`
	AuditEvents int `json:"audit_events"`
}

// Service runs retention cleanup and subject erasure.
type Service struct {
	store          RecordStore
	trail          SubjectAnonymizer
	policy         Policy
	archiver       Archiver
	fingerprintKey []byte
	publisher      alerting.Publisher
	logger         *slog.Logger
	metrics        *Metrics
	tracer         trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithArchiver archives records before they are purged.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithTrail anonymizes audit-trail entries during erasure.
func WithTrail(t SubjectAnonymizer) Option {
	return func(s *Service) { s.trail = t }
}

// WithPublisher sets where violation and erasure notifications go.
func WithPublisher(p alerting.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithFingerprintKey enables the keyed subject fingerprint on erasure events.
// BLAKE2b accepts keys up to 64 bytes.
func WithFingerprintKey(key string) Option {
	return func(s *Service) { s.fingerprintKey = []byte(key) }
}

// WithTracer sets the tracer for cleanup spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New creates a retention service over store.
func New(store RecordStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	s := &Service{
		store:     store,
		policy:    DefaultPolicy(),
		publisher: alerting.Discard,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("attest/retention"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.fingerprintKey) > blake2b.Size {
		return nil, fmt.Errorf("fingerprint key must be at most %d bytes", blake2b.Size)
	}
	return s, nil
}

// Policy returns the policy in force.
func (s *Service) Policy() Policy {
	return s.policy
}

// RunCleanup purges expired deletable records one category at a time.
// Store errors are recorded per category and do not stop the run.
func (s *Service) RunCleanup(ctx context.Context) (*CleanupResult, error) {
	ctx, span := s.tracer.Start(ctx, "retention.cleanup")
	defer span.End()

	now := requestcontext.Now(ctx)
	res := &CleanupResult{PerCategory: map[string]CategoryResult{}, StartedAt: now}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if s.metrics != nil {
			s.metrics.CleanupDuration.Observe(res.Duration.Seconds())
		}
	}()

	categories, err := s.store.Categories(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list categories failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cleanup cancelled")
			return res, err
		}
		cr := s.cleanCategory(ctx, category, now)
		res.PerCategory[category] = cr
		res.Purged += cr.Purged
		res.Retained += cr.Retained
		res.Violations += cr.Violations
		if s.metrics != nil {
			s.metrics.observeCategory(category, cr)
		}
	}

	span.SetAttributes(
		attribute.Int("retention.purged", res.Purged),
		attribute.Int("retention.retained", res.Retained),
		attribute.Int("retention.violations", res.Violations),
	)
	s.logger.InfoContext(ctx, "retention cleanup complete",
		"purged", res.Purged,
		"retained", res.Retained,
		"violations", res.Violations,
		"categories", len(categories),
	)
	return res, nil
}

func (s *Service) cleanCategory(ctx context.Context, category string, now time.Time) CategoryResult {
	var cr CategoryResult
	snap, err := s.store.Snapshot(ctx, category)
	if err != nil {
		cr.Error = err.Error()
		s.logger.ErrorContext(ctx, "retention snapshot failed", "category", category, "error", err)
		return cr
	}

	var purge []*records.LogRecord
	for _, r := range snap {
		if !s.policy.Expired(r, now) {
			continue
		}
		if CanDelete(r) {
			purge = append(purge, r)
			continue
		}
		cr.Retained++
		if s.policy.IsViolation(r, now) {
			cr.Violations++
		}
	}

	if cr.Violations > 0 {
		s.reportViolations(ctx, category, cr.Violations, now)
	}
	if len(purge) == 0 {
		return cr
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, category, purge); err != nil {
			cr.ArchiveFailed = true
			cr.Error = err.Error()
			if s.metrics != nil {
				s.metrics.ArchiveFailures.WithLabelValues(category).Inc()
			}
			s.logger.ErrorContext(ctx, "archive failed, skipping purge",
				"category", category,
				"records", len(purge),
				"error", err,
			)
			return cr
		}
	}

	ids := make(map[string]struct{}, len(purge))
	for _, r := range purge {
		ids[r.ID] = struct{}{}
	}
	removed, err := s.store.DeleteWhere(ctx, category, func(r *records.LogRecord) bool {
		_, ok := ids[r.ID]
		return ok && CanDelete(r)
	})
	if err != nil {
		cr.Error = err.Error()
		s.logger.ErrorContext(ctx, "retention purge failed", "category", category, "error", err)
		return cr
	}
	cr.Purged = len(removed)
	return cr
}

func (s *Service) reportViolations(ctx context.Context, category string, count int, now time.Time) {
	msg := fmt.Sprintf("%d protected records in %q are past their retention window without legal hold", count, category)
	n := alerting.New(alerting.KindRetentionViolation, alerting.SeverityMedium, msg, now)
	n.Category = category
	s.publisher.Publish(n)
	s.logger.WarnContext(ctx, "retention violation", "category", category, "count", count)
}

// ForgetSubject deletes every deletable record bearing subjectID and
// anonymizes the rest, including audit-trail entries. The logged erasure
// event carries no subject id, so repeating the call finds nothing.
func (s *Service) ForgetSubject(ctx context.Context, subjectID string) (*ErasureResult, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject id is required")
	}
	if subjectID == records.AnonymizedSubject {
		return nil, dErrors.New(dErrors.CodeValidation, "subject id is reserved for anonymized records")
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}

	res := &ErasureResult{}
	bySubject := func(r *records.LogRecord) bool { return r.SubjectID == subjectID }
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		removed, err := s.store.DeleteWhere(ctx, category, func(r *records.LogRecord) bool {
			return bySubject(r) && CanDelete(r)
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subject records")
		}
		res.Deleted += len(removed)

		updated, err := s.store.UpdateWhere(ctx, category, bySubject, func(r *records.LogRecord) {
			r.Anonymize()
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to anonymize subject records")
		}
		res.Anonymized += len(updated)
	}
	res.Conflicts = res.Anonymized
	if s.trail != nil {
		res.AuditEvents = s.trail.AnonymizeSubject(subjectID)
	}

	if s.metrics != nil {
		s.metrics.Erasures.Inc()
		s.metrics.Conflicts.Add(float64(res.Conflicts))
	}
	s.logErasure(ctx, subjectID, res)
	return res, nil
}

func (s *Service) logErasure(ctx context.Context, subjectID string, res *ErasureResult) {
	details := records.Metadata{
		"deleted":      records.Int(res.Deleted),
		"anonymized":   records.Int(res.Anonymized),
		"conflicts":    records.Int(res.Conflicts),
		"audit_events": records.Int(res.AuditEvents),
	}
	if fp := s.Fingerprint(subjectID); fp != "" {
		details["subject_fingerprint"] = records.String(fp)
	}
	rec, err := s.store.Append(ctx, records.ComplianceEvent(erasureRegulation, EventRightToBeForgotten, "compliant", details))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to log erasure event", "error", err)
		return
	}

	n := alerting.New(alerting.KindSubjectErased, alerting.SeverityInfo,
		fmt.Sprintf("subject erased: %d deleted, %d anonymized", res.Deleted, res.Anonymized), rec.Timestamp)
	n.Category = records.CategoryCompliance
	n.Payload = rec
	s.publisher.Publish(n)

	s.logger.InfoContext(ctx, "subject erased",
		"deleted", res.Deleted,
		"anonymized", res.Anonymized,
		"audit_events", res.AuditEvents,
	)
}

// Fingerprint returns the keyed BLAKE2b-256 digest of subjectID in hex, or
// "" when no key is configured.
func (s *Service) Fingerprint(subjectID string) string {
	if len(s.fingerprintKey) == 0 {
		return ""
	}
	h, err := blake2b.New256(s.fingerprintKey)
	if err != nil {
		return ""
	}
	h.Write([]byte(subjectID))
	return hex.EncodeToString(h.Sum(nil))
}
