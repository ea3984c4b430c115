// Package engine wires the event store, audit trail, retention, compliance
// assessment and alerting into one service with a single lifecycle.
//
// Collaborators call the write side (Log, Audit, DataAccess, Security,
// Compliance) fire-and-forget: only validation errors are returned and
// downstream failures are logged. Background work (retention cleanup,
// compliance monitoring, mirror writes, notification forwarding) runs on a
// scheduler between Start and Stop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"attest/internal/alerting"
	"attest/internal/audittrail"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/catalog"
	"attest/internal/compliance/incident"
	"attest/internal/compliance/monitor"
	"attest/internal/compliance/report"
	"attest/internal/platform/scheduler"
	"attest/internal/records"
	"attest/internal/retention"
)

const (
	defaultCleanupInterval = 24 * time.Hour
	defaultMonitorInterval = time.Hour
	defaultSummaryInterval = 24 * time.Hour
	defaultMirrorQueue     = 1024
	defaultRestoreWindow   = 30 * 24 * time.Hour
)

// Mirror is a durable copy of the event store that can also be read back
// to restore the in-memory store at startup.
type Mirror interface {
	records.Mirror
	Recent(ctx context.Context, since time.Time, limit int) ([]*records.LogRecord, error)
}

// Schedule sets how often background tasks run. Zero fields keep defaults.
type Schedule struct {
	Cleanup time.Duration
	Monitor time.Duration
	Summary time.Duration
}

// Metrics bundles the collectors of every component.
type Metrics struct {
	Records    *records.Metrics
	Alerting   *alerting.Metrics
	Audit      *audittrail.Metrics
	Retention  *retention.Metrics
	Assessment *assessment.Metrics
}

// NewMetrics registers every component's metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Records:    records.NewMetrics(),
		Alerting:   alerting.NewMetrics(),
		Audit:      audittrail.NewMetrics(),
		Retention:  retention.NewMetrics(),
		Assessment: assessment.NewMetrics(),
	}
}

type settings struct {
	logger          *slog.Logger
	metrics         *Metrics
	catalog         *catalog.Catalog
	probes          *assessment.Registry
	builtinProbes   bool
	scoring         *assessment.ScoringPolicy
	probeTimeout    time.Duration
	evidenceWindow  time.Duration
	retentionPolicy *retention.Policy
	archiver        retention.Archiver
	fingerprintKey  string
	auditCapacity   int
	triggers        []alerting.Trigger
	mirror          Mirror
	mirrorQueue     int
	restoreWindow   time.Duration
	sinks           []alerting.Sink
	schedule        Schedule
}

// Option configures an Engine.
type Option func(*settings)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithCatalog replaces the built-in regulation catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *settings) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithProbes registers automated compliance probes.
func WithProbes(r *assessment.Registry) Option {
	return func(s *settings) { s.probes = r }
}

// WithBuiltinProbes registers the event-store probes for the catalog's
// audit trail and access control requirements. Probes passed to WithProbes
// take precedence for the same requirement.
func WithBuiltinProbes(enabled bool) Option {
	return func(s *settings) { s.builtinProbes = enabled }
}

// WithScoringPolicy sets how automated and evidence scores are weighted.
func WithScoringPolicy(p assessment.ScoringPolicy) Option {
	return func(s *settings) { s.scoring = &p }
}

// WithProbeTimeout bounds every probe run.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *settings) { s.probeTimeout = d }
}

// WithEvidenceWindow sets how far back assessments look for evidence.
func WithEvidenceWindow(d time.Duration) Option {
	return func(s *settings) { s.evidenceWindow = d }
}

// WithRetentionPolicy replaces the default retention windows.
func WithRetentionPolicy(p retention.Policy) Option {
	return func(s *settings) { s.retentionPolicy = &p }
}

// WithArchiver archives records before retention purges them.
func WithArchiver(a retention.Archiver) Option {
	return func(s *settings) { s.archiver = a }
}

// WithFingerprintKey enables keyed subject fingerprints on erasure events.
func WithFingerprintKey(key string) Option {
	return func(s *settings) { s.fingerprintKey = key }
}

// WithAuditCapacity sets the audit trail buffer size.
func WithAuditCapacity(n int) Option {
	return func(s *settings) { s.auditCapacity = n }
}

// WithTriggers replaces the default alert triggers.
func WithTriggers(triggers []alerting.Trigger) Option {
	return func(s *settings) { s.triggers = triggers }
}

// WithMirror enables write-behind to m and restores records newer than
// restoreWindow from it on Start.
func WithMirror(m Mirror, queueSize int, restoreWindow time.Duration) Option {
	return func(s *settings) {
		s.mirror = m
		if queueSize > 0 {
			s.mirrorQueue = queueSize
		}
		if restoreWindow > 0 {
			s.restoreWindow = restoreWindow
		}
	}
}

// WithSinks forwards bus notifications to external systems.
func WithSinks(sinks ...alerting.Sink) Option {
	return func(s *settings) { s.sinks = append(s.sinks, sinks...) }
}

// WithSchedule overrides background task intervals.
func WithSchedule(sch Schedule) Option {
	return func(s *settings) {
		if sch.Cleanup > 0 {
			s.schedule.Cleanup = sch.Cleanup
		}
		if sch.Monitor > 0 {
			s.schedule.Monitor = sch.Monitor
		}
		if sch.Summary > 0 {
			s.schedule.Summary = sch.Summary
		}
	}
}

// Engine is the compliance-aware audit and logging engine.
type Engine struct {
	records     *records.Service
	trail       *audittrail.Trail
	retention   *retention.Service
	catalog     *catalog.Catalog
	assessments *assessment.Engine
	incidents   *incident.Manager
	monitor     *monitor.Monitor
	reports     *report.Generator
	bus         *alerting.Bus
	scheduler   *scheduler.Scheduler
	sinks       []alerting.Sink
	mirror      Mirror
	logger      *slog.Logger

	restoreWindow time.Duration
	closeOnce     sync.Once
	stopped       atomic.Bool
}

// New assembles an engine over store.
func New(store records.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("records store is required")
	}
	s := settings{
		logger:        slog.New(slog.DiscardHandler),
		auditCapacity: audittrail.DefaultBufferCapacity,
		triggers:      alerting.DefaultTriggers(),
		mirrorQueue:   defaultMirrorQueue,
		restoreWindow: defaultRestoreWindow,
		schedule: Schedule{
			Cleanup: defaultCleanupInterval,
			Monitor: defaultMonitorInterval,
			Summary: defaultSummaryInterval,
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	m := s.metrics
	if m == nil {
		m = &Metrics{}
	}

	bus := alerting.NewBus(alerting.WithLogger(s.logger), alerting.WithMetrics(m.Alerting))

	matcher, err := alerting.NewMatcher(s.triggers)
	if err != nil {
		return nil, fmt.Errorf("alert triggers: %w", err)
	}

	recOpts := []records.Option{
		records.WithLogger(s.logger),
		records.WithMetrics(m.Records),
		records.WithMatcher(matcher),
		records.WithPublisher(bus),
	}
	if s.mirror != nil {
		recOpts = append(recOpts, records.WithMirror(s.mirror, s.mirrorQueue))
	}
	recs, err := records.New(store, recOpts...)
	if err != nil {
		return nil, err
	}

	trail, err := audittrail.New(recs,
		audittrail.WithLogger(s.logger),
		audittrail.WithMetrics(m.Audit),
		audittrail.WithPublisher(bus),
		audittrail.WithCapacity(s.auditCapacity),
	)
	if err != nil {
		return nil, err
	}

	policy := retention.DefaultPolicy()
	if s.retentionPolicy != nil {
		policy = *s.retentionPolicy
	}
	retOpts := []retention.Option{
		retention.WithLogger(s.logger),
		retention.WithMetrics(m.Retention),
		retention.WithPolicy(policy),
		retention.WithTrail(trail),
		retention.WithPublisher(bus),
		retention.WithFingerprintKey(s.fingerprintKey),
	}
	if s.archiver != nil {
		retOpts = append(retOpts, retention.WithArchiver(s.archiver))
	}
	ret, err := retention.New(recs, retOpts...)
	if err != nil {
		return nil, err
	}

	probes := s.probes
	if s.builtinProbes {
		probes = assessment.BuiltinProbes(s.catalog, recs, s.evidenceWindow).Merge(s.probes)
	}
	assessOpts := []assessment.Option{
		assessment.WithLogger(s.logger),
		assessment.WithMetrics(m.Assessment),
		assessment.WithPublisher(bus),
		assessment.WithProbes(probes),
		assessment.WithProbeTimeout(s.probeTimeout),
		assessment.WithEvidenceWindow(s.evidenceWindow),
	}
	if s.scoring != nil {
		assessOpts = append(assessOpts, assessment.WithScoringPolicy(*s.scoring))
	}
	assessments, err := assessment.New(s.catalog, recs, assessOpts...)
	if err != nil {
		return nil, err
	}

	incidents, err := incident.NewManager(recs,
		incident.WithLogger(s.logger),
		incident.WithPublisher(bus),
	)
	if err != nil {
		return nil, err
	}

	mon, err := monitor.New(s.catalog, assessments, incidents,
		monitor.WithLogger(s.logger),
		monitor.WithPublisher(bus),
	)
	if err != nil {
		return nil, err
	}

	reports, err := report.New(recs, assessments, incidents, s.catalog,
		report.WithLogger(s.logger),
		report.WithPolicy(policy),
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		records:       recs,
		trail:         trail,
		retention:     ret,
		catalog:       s.catalog,
		assessments:   assessments,
		incidents:     incidents,
		monitor:       mon,
		reports:       reports,
		bus:           bus,
		scheduler:     scheduler.New(scheduler.WithLogger(s.logger)),
		sinks:         s.sinks,
		mirror:        s.mirror,
		logger:        s.logger,
		restoreWindow: s.restoreWindow,
	}
	if err := e.registerTasks(s.schedule, m.Alerting); err != nil {
		return nil, err
	}
	return e, nil
}

// Catalog returns the regulation catalog in force.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Bus returns the notification bus for in-process subscribers.
func (e *Engine) Bus() *alerting.Bus {
	return e.bus
}
