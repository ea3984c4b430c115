package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"attest/internal/alerting"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/circuit"
	"attest/pkg/requestcontext"
)

const (
	defaultMirrorQueue   = 1024
	defaultMirrorTimeout = 5 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service ingests and queries records. Ingestion is bounded: it validates,
// appends with cap eviction and enqueues side effects without waiting on them.
type Service struct {
	store     Store
	tagging   TaggingTable
	matcher   *alerting.Matcher
	publisher alerting.Publisher
	logger    *slog.Logger
	metrics   *Metrics

	mirror        Mirror
	mirrorQueue   chan mirrorOp
	mirrorBreaker *circuit.Breaker
	mirrorTimeout time.Duration
}

type mirrorOp struct {
	upsert []*LogRecord
	delete []string
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

// WithTagging replaces the default tagging table.
func WithTagging(t TaggingTable) Option {
	return func(s *Service) { s.tagging = t }
}

// WithMatcher sets the alert triggers tested against each append.
func WithMatcher(m *alerting.Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithPublisher sets where notifications go.
func WithPublisher(p alerting.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMirror enables write-behind to a durable mirror. RunMirror must be
// started for queued writes to be applied.
func WithMirror(m Mirror, queueSize int) Option {
	return func(s *Service) {
		if queueSize <= 0 {
			queueSize = defaultMirrorQueue
		}
		s.mirror = m
		s.mirrorQueue = make(chan mirrorOp, queueSize)
	}
}

// New creates a record service over store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("records store is required")
	}
	s := &Service{
		store:         store,
		tagging:       DefaultTagging(),
		publisher:     alerting.Discard,
		logger:        slog.New(slog.DiscardHandler),
		mirrorBreaker: circuit.New("records-mirror", circuit.WithFailureThreshold(3), circuit.WithCooldown(15*time.Second)),
		mirrorTimeout: defaultMirrorTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append validates and stores a record. Only validation and storage errors
// are returned; alerting and mirroring problems are logged.
// The stored copy is returned with ID, timestamp and tag filled in.
func (s *Service) Append(ctx context.Context, in *LogRecord) (*LogRecord, error) {
	if in == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "record is required")
	}
	if err := Validate(in); err != nil {
		if s.metrics != nil {
			s.metrics.IncRejected()
		}
		return nil, err
	}

	rec := in.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}
	if rec.ComplianceTag == nil {
		rec.ComplianceTag = s.tagging.TagFor(rec.Level, rec.Category)
	}
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		if rec.Context == nil {
			rec.Context = &Context{}
		}
		if rec.Context.RequestID == "" {
			rec.Context.RequestID = reqID
		}
	}

	// The store owns its copy; redaction mutates it under the partition lock
	// while rec is still read by the mirror writer and notifications.
	evicted, err := s.store.Append(ctx, rec.Clone())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store record")
	}
	if s.metrics != nil {
		s.metrics.IncAppended(rec.Level)
		if evicted > 0 {
			s.metrics.AddEvicted(rec.Category, evicted)
		}
	}

	s.enqueueMirror(ctx, mirrorOp{upsert: []*LogRecord{rec}})
	s.notify(rec)
	return rec.Clone(), nil
}

// Restore loads previously mirrored records into the store. Records are
// stored as-is: no tagging, notifications or mirror writes. Invalid records
// are skipped and counted.
func (s *Service) Restore(ctx context.Context, recs []*LogRecord) (restored, skipped int, err error) {
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return restored, skipped, err
		}
		if r == nil || r.ID == "" || Validate(r) != nil {
			skipped++
			continue
		}
		if _, err := s.store.Append(ctx, r.Clone()); err != nil {
			return restored, skipped, dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore record")
		}
		restored++
	}
	return restored, skipped, nil
}

// Validate checks the required fields of a record.
func Validate(r *LogRecord) error {
	if err := validate.Struct(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, validationMessage(err))
	}
	if !r.Level.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid level: "+string(r.Level))
	}
	if strings.TrimSpace(r.Category) == "" || strings.TrimSpace(r.Message) == "" {
		return dErrors.New(dErrors.CodeValidation, "category and message must not be blank")
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid record"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid record: " + strings.Join(parts, ", ")
}

func (s *Service) notify(rec *LogRecord) {
	appended := alerting.New(alerting.KindRecordAppended, alerting.SeverityInfo, rec.Message, rec.Timestamp)
	appended.Category = rec.Category
	appended.Payload = rec.Clone()
	s.publisher.Publish(appended)

	for _, hit := range s.matcher.Match(matchText(rec)) {
		if s.metrics != nil {
			s.metrics.IncPatternMatch(hit.Name)
		}
		n := alerting.New(alerting.KindPatternMatched, hit.Severity, "trigger "+hit.Name+" matched", rec.Timestamp)
		n.Category = rec.Category
		n.Pattern = hit.Pattern
		n.Payload = rec.Clone()
		s.publisher.Publish(n)
	}
}

// matchText is the text triggers are tested against: message then metadata leaves.
func matchText(rec *LogRecord) string {
	var b strings.Builder
	b.WriteString(rec.Message)
	rec.Metadata.Flatten("", func(path, value string) {
		b.WriteString(" ")
		b.WriteString(path)
		b.WriteString("=")
		b.WriteString(value)
	})
	return b.String()
}

// Search returns matching records newest first.
func (s *Service) Search(ctx context.Context, c Criteria) ([]*LogRecord, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSearch(time.Since(start).Seconds())
		}
	}()

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	var out []*LogRecord
	for _, category := range categories {
		if !c.IncludesCategory(category) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.store.Snapshot(ctx, category)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read category")
		}
		for _, r := range snap {
			if c.Matches(r) {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

// Categories lists every category holding records.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// Snapshot returns copies of one category's records, oldest first.
func (s *Service) Snapshot(ctx context.Context, category string) ([]*LogRecord, error) {
	return s.store.Snapshot(ctx, category)
}

// Count returns the total number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// DeleteWhere removes matching records in one category and mirrors the deletion.
func (s *Service) DeleteWhere(ctx context.Context, category string, pred Predicate) ([]*LogRecord, error) {
	removed, err := s.store.DeleteWhere(ctx, category, pred)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete records")
	}
	if len(removed) > 0 {
		ids := make([]string, len(removed))
		for i, r := range removed {
			ids[i] = r.ID
		}
		s.enqueueMirror(ctx, mirrorOp{delete: ids})
	}
	return removed, nil
}

// UpdateWhere mutates matching records in one category and mirrors the result.
func (s *Service) UpdateWhere(ctx context.Context, category string, pred Predicate, mutate Mutator) ([]*LogRecord, error) {
	updated, err := s.store.UpdateWhere(ctx, category, pred, mutate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update records")
	}
	if len(updated) > 0 {
		s.enqueueMirror(ctx, mirrorOp{upsert: updated})
	}
	return updated, nil
}

func (s *Service) enqueueMirror(ctx context.Context, op mirrorOp) {
	if s.mirror == nil {
		return
	}
	select {
	case s.mirrorQueue <- op:
	default:
		if s.metrics != nil {
			s.metrics.IncMirrorDropped()
		}
		s.logger.WarnContext(ctx, "mirror queue full, dropping write",
			"upserts", len(op.upsert),
			"deletes", len(op.delete),
		)
	}
}

// RunMirror applies queued mirror writes until ctx is cancelled.
// It returns immediately when no mirror is configured.
func (s *Service) RunMirror(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-s.mirrorQueue:
			s.applyMirror(ctx, op)
		}
	}
}

func (s *Service) applyMirror(ctx context.Context, op mirrorOp) {
	if !s.mirrorBreaker.Allow() {
		if s.metrics != nil {
			s.metrics.IncMirrorDropped()
		}
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	defer cancel()

	apply := func(ctx context.Context) error {
		if len(op.upsert) > 0 {
			if err := s.mirror.Upsert(ctx, op.upsert); err != nil {
				return err
			}
		}
		if len(op.delete) > 0 {
			return s.mirror.Delete(ctx, op.delete)
		}
		return nil
	}
	var err error
	if txm, ok := s.mirror.(TxMirror); ok {
		err = txm.RunInTx(opCtx, apply)
	} else {
		err = apply(opCtx)
	}

	if err != nil {
		_, change := s.mirrorBreaker.RecordFailure()
		if s.metrics != nil {
			s.metrics.IncMirrorFailure()
			if change.Opened {
				s.metrics.SetMirrorCircuitOpen(true)
			}
		}
		s.logger.ErrorContext(ctx, "record mirror write failed", "error", err)
		return
	}
	_, change := s.mirrorBreaker.RecordSuccess()
	if change.Closed && s.metrics != nil {
		s.metrics.SetMirrorCircuitOpen(false)
	}
}
