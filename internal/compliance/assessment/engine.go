package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"attest/internal/alerting"
	"attest/internal/compliance/catalog"
	"attest/internal/compliance/remediation"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/requestcontext"
)

const (
	defaultProbeTimeout   = 5 * time.Second
	defaultEvidenceWindow = 30 * 24 * time.Hour
	reassessAfter         = 90 * 24 * time.Hour

	// missingProbeScore is the automated score of a requirement without a probe.
	missingProbeScore = 50.0
)

// RecordSource supplies the recent records evidence is drawn from.
type RecordSource interface {
	Search(ctx context.Context, c records.Criteria) ([]*records.LogRecord, error)
}

// Engine runs assessments and keeps their history per regulation.
type Engine struct {
	catalog        *catalog.Catalog
	source         RecordSource
	probes         *Registry
	policy         ScoringPolicy
	probeTimeout   time.Duration
	evidenceWindow time.Duration
	publisher      alerting.Publisher
	logger         *slog.Logger
	metrics        *Metrics
	tracer         trace.Tracer

	mu      sync.RWMutex
	history map[string][]*Assessment
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher sets where gap notifications go.
func WithPublisher(p alerting.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithProbes sets the automated probe registry.
func WithProbes(r *Registry) Option {
	return func(e *Engine) { e.probes = r }
}

// WithScoringPolicy replaces the default 50/50 weighting.
func WithScoringPolicy(p ScoringPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithProbeTimeout bounds each probe run.
func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.probeTimeout = d
		}
	}
}

// WithEvidenceWindow sets how far back evidence is searched.
func WithEvidenceWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.evidenceWindow = d
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an engine over an immutable catalog.
func New(cat *catalog.Catalog, source RecordSource, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	if source == nil {
		return nil, errors.New("record source is required")
	}
	e := &Engine{
		catalog:        cat,
		source:         source,
		probes:         NewRegistry(nil),
		policy:         DefaultScoringPolicy(),
		probeTimeout:   defaultProbeTimeout,
		evidenceWindow: defaultEvidenceWindow,
		publisher:      alerting.Discard,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("attest/compliance/assessment"),
		history:        make(map[string][]*Assessment),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Probes returns the probe registry.
func (e *Engine) Probes() *Registry {
	return e.probes
}

// ProbeTimeout returns the per-probe timeout.
func (e *Engine) ProbeTimeout() time.Duration {
	return e.probeTimeout
}

// Assess scores every requirement of a regulation. Probe failures are
// scored 0 and never fail the run.
func (e *Engine) Assess(ctx context.Context, regulationID string) (*Assessment, error) {
	reg, ok := e.catalog.Get(regulationID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown regulation: "+regulationID)
	}

	ctx, span := e.tracer.Start(ctx, "assessment.assess",
		trace.WithAttributes(attribute.String("regulation.id", regulationID)))
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)

	recent, err := e.source.Search(ctx, records.Criteria{From: now.Add(-e.evidenceWindow)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read evidence")
	}
	present := evidencePresent(recent)

	results := make([]RequirementAssessment, len(reg.Requirements))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reg.Requirements {
		g.Go(func() error {
			results[i] = e.assessRequirement(gctx, req, present, now)
			return nil
		})
	}
	// Requirement goroutines never return errors; failures are scored.
	_ = g.Wait()

	a := &Assessment{
		ID:                uuid.NewString(),
		RegulationID:      reg.ID,
		AssessedAt:        now,
		Requirements:      results,
		Gaps:              []remediation.Gap{},
		NextAssessmentDue: now.Add(reassessAfter),
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	a.OverallScore = sum / float64(len(results))
	a.Status = RegulationStatus(a.OverallScore)

	for i, r := range results {
		if r.Status == StatusCompliant {
			continue
		}
		a.Gaps = append(a.Gaps, e.newGap(reg, reg.Requirements[i], r))
	}
	a.RemediationPlan = remediation.BuildPlan(reg.ID, a.Gaps, now)

	e.mu.Lock()
	e.history[reg.ID] = append(e.history[reg.ID], a)
	e.mu.Unlock()

	for _, gap := range a.Gaps {
		e.publishGap(gap, now)
	}

	span.SetAttributes(
		attribute.Float64("assessment.score", a.OverallScore),
		attribute.String("assessment.status", string(a.Status)),
		attribute.Int("assessment.gaps", len(a.Gaps)),
	)
	if e.metrics != nil {
		e.metrics.Assessments.WithLabelValues(reg.ID, string(a.Status)).Inc()
		e.metrics.Score.WithLabelValues(reg.ID).Set(a.OverallScore)
		e.metrics.Duration.Observe(time.Since(start).Seconds())
		for _, gap := range a.Gaps {
			e.metrics.Gaps.WithLabelValues(string(gap.Severity)).Inc()
		}
	}
	e.logger.InfoContext(ctx, "compliance assessment complete",
		"regulation", reg.ID,
		"score", a.OverallScore,
		"status", a.Status,
		"gaps", len(a.Gaps),
	)
	return a.Clone(), nil
}

func (e *Engine) assessRequirement(ctx context.Context, req catalog.Requirement, present map[string]struct{}, now time.Time) RequirementAssessment {
	ra := RequirementAssessment{
		RequirementID: req.ID,
		Title:         req.Title,
		Category:      req.Category,
		EvidenceFound: []string{},
		AssessedAt:    now,
	}

	ra.AutomatedScore = missingProbeScore
	if probe, ok := e.probes.Get(req.ID); ok {
		score, err := e.runProbe(ctx, probe, req)
		ra.AutomatedScore = score
		if err != nil {
			ra.ProbeError = err.Error()
			ra.Gaps = append(ra.Gaps, "automated check failed")
		}
	}

	var missing []string
	for _, et := range req.EvidenceTypes {
		if _, ok := present[et]; ok {
			ra.EvidenceFound = append(ra.EvidenceFound, et)
		} else {
			missing = append(missing, et)
		}
	}
	ra.EvidenceScore = 100
	if len(req.EvidenceTypes) > 0 {
		ra.EvidenceScore = round2(100 * float64(len(ra.EvidenceFound)) / float64(len(req.EvidenceTypes)))
	}
	for _, et := range missing {
		ra.Gaps = append(ra.Gaps, "no recent evidence of "+et)
	}

	ra.Score = e.policy.Score(req.Category, ra.AutomatedScore, ra.EvidenceScore)
	ra.Status = RequirementStatus(ra.Score)
	return ra
}

func (e *Engine) runProbe(ctx context.Context, p Probe, req catalog.Requirement) (float64, error) {
	ctx, span := e.tracer.Start(ctx, "assessment.probe",
		trace.WithAttributes(attribute.String("requirement.id", req.ID)))
	defer span.End()

	score, err := RunProbe(ctx, p, req, e.probeTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		if e.metrics != nil {
			e.metrics.ProbeFailures.WithLabelValues(req.ID).Inc()
		}
		e.logger.ErrorContext(ctx, "compliance probe failed",
			"requirement", req.ID,
			"error", err,
		)
		return 0, err
	}
	span.SetAttributes(attribute.Float64("probe.score", score))
	return score, nil
}

func (e *Engine) newGap(reg catalog.Regulation, req catalog.Requirement, ra RequirementAssessment) remediation.Gap {
	severity := remediation.SeverityForScore(ra.Score)
	impact := "optional control below target"
	if req.Mandatory {
		impact = "mandatory requirement not met"
		if reg.Penalties.Financial != "" {
			impact += "; exposure: " + reg.Penalties.Financial
		}
	}
	return remediation.Gap{
		ID:                uuid.NewString(),
		RegulationID:      reg.ID,
		RequirementID:     req.ID,
		Severity:          severity,
		Score:             ra.Score,
		Description:       fmt.Sprintf("%s scored %.2f (%s)", req.Title, ra.Score, ra.Status),
		Impact:            impact,
		RemediationAdvice: e.catalog.Advice(req.ID),
		TimelineDays:      remediation.TimelineDays(severity),
		Status:            remediation.GapIdentified,
	}
}

func (e *Engine) publishGap(gap remediation.Gap, now time.Time) {
	n := alerting.New(alerting.KindComplianceGap, alerting.Severity(gap.Severity), gap.Description, now)
	n.Category = records.CategoryCompliance
	n.Payload = gap
	e.publisher.Publish(n)
}

// evidencePresent collects every evidence type the records carry.
func evidencePresent(recs []*records.LogRecord) map[string]struct{} {
	present := make(map[string]struct{})
	for _, r := range recs {
		present[r.Category] = struct{}{}
		for _, key := range []string{"evidence_type", "event", "action"} {
			if s, ok := r.Metadata[key].Str(); ok && s != "" {
				present[s] = struct{}{}
			}
		}
	}
	return present
}

// GetAssessments returns history for a regulation, or for all regulations
// when regulationID is empty, oldest first.
func (e *Engine) GetAssessments(regulationID string) []*Assessment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*Assessment
	if regulationID != "" {
		for _, a := range e.history[regulationID] {
			out = append(out, a.Clone())
		}
		return out
	}
	for _, hist := range e.history {
		for _, a := range hist {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AssessedAt.Before(out[j].AssessedAt)
	})
	return out
}

// Latest returns the most recent assessment of a regulation.
func (e *Engine) Latest(regulationID string) (*Assessment, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hist := e.history[regulationID]
	if len(hist) == 0 {
		return nil, false
	}
	return hist[len(hist)-1].Clone(), true
}

// CountSince returns how many assessments ran at or after t.
func (e *Engine) CountSince(t time.Time) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, hist := range e.history {
		for _, a := range hist {
			if !a.AssessedAt.Before(t) {
				n++
			}
		}
	}
	return n
}
