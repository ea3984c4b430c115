package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/compliance/catalog"
	"attest/internal/records"
	"attest/internal/records/store/memory"
	"attest/pkg/requestcontext"
)

type BuiltinProbeSuite struct {
	suite.Suite
	ctx  context.Context
	now  time.Time
	recs *records.Service
}

func TestBuiltinProbeSuite(t *testing.T) {
	suite.Run(t, new(BuiltinProbeSuite))
}

func (s *BuiltinProbeSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	recs, err := records.New(memory.New(1000))
	s.Require().NoError(err)
	s.recs = recs
}

func (s *BuiltinProbeSuite) access(action, outcome string, age time.Duration) {
	_, err := s.recs.Append(s.ctx, &records.LogRecord{
		Timestamp: s.now.Add(-age),
		Level:     records.LevelAudit,
		Category:  records.CategoryAudit,
		Message:   action + " " + outcome,
		Metadata: records.Metadata{
			"action":  records.String(action),
			"outcome": records.String(outcome),
		},
	})
	s.Require().NoError(err)
}

// =============================================================================
// Registration
// =============================================================================

func (s *BuiltinProbeSuite) TestRegistersMeasurableAutomatedRequirements() {
	reg := BuiltinProbes(catalog.Default(), s.recs, 0)

	_, ok := reg.Get("gdpr_art_30")
	s.True(ok, "automated audit trail requirement")
	_, ok = reg.Get("sox_404")
	s.True(ok, "mixed access control requirement")
	_, ok = reg.Get("hipaa_164_308_a5")
	s.False(ok, "manual training requirement")
	_, ok = reg.Get("gdpr_art_33")
	s.False(ok, "incident response has no event-store measure")
}

func (s *BuiltinProbeSuite) TestMergePrefersExplicitProbes() {
	fixed := ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) { return 42, nil })
	reg := BuiltinProbes(catalog.Default(), s.recs, 0).Merge(NewRegistry(map[string]Probe{"gdpr_art_30": fixed}))

	p, ok := reg.Get("gdpr_art_30")
	s.Require().True(ok)
	score, err := p.Check(s.ctx, catalog.Requirement{ID: "gdpr_art_30"})
	s.Require().NoError(err)
	s.Equal(42.0, score)

	_, ok = reg.Get("sox_404")
	s.True(ok)
	s.Equal(BuiltinProbes(catalog.Default(), s.recs, 0).Len(), reg.Len())
}

// =============================================================================
// Scoring
// =============================================================================

func (s *BuiltinProbeSuite) TestAuditTrailProbeScoresRecentVolume() {
	probe := AuditTrailProbe{Source: s.recs, Window: 24 * time.Hour, Target: 4}

	score, err := probe.Check(s.ctx, catalog.Requirement{})
	s.Require().NoError(err)
	s.Zero(score)

	s.access("report_export", "success", time.Hour)
	s.access("report_export", "success", 2*time.Hour)
	s.access("report_export", "success", 48*time.Hour) // outside the window
	_, err = s.recs.Append(s.ctx, &records.LogRecord{Level: records.LevelInfo, Category: "app", Message: "not audit"})
	s.Require().NoError(err)

	score, err = probe.Check(s.ctx, catalog.Requirement{})
	s.Require().NoError(err)
	s.Equal(50.0, score)

	for range 5 {
		s.access("report_export", "success", time.Minute)
	}
	score, err = probe.Check(s.ctx, catalog.Requirement{})
	s.Require().NoError(err)
	s.Equal(100.0, score, "capped at 100")
}

func (s *BuiltinProbeSuite) TestAccessControlProbeScoresFailureRatio() {
	probe := AccessControlProbe{Source: s.recs, Window: 24 * time.Hour}

	score, err := probe.Check(s.ctx, catalog.Requirement{})
	s.Require().NoError(err)
	s.Equal(noActivityScore, score, "no attempts to judge")

	s.access("user_login", "success", time.Hour)
	s.access("user_login", "failure", time.Hour)
	s.access("record_access", "success", time.Hour)
	s.access("record_access", "success", time.Hour)
	s.access("invoice_create", "failure", time.Hour) // not an access attempt

	score, err = probe.Check(s.ctx, catalog.Requirement{})
	s.Require().NoError(err)
	s.Equal(75.0, score)
}

func (s *BuiltinProbeSuite) TestProbesHonourCancellation() {
	s.access("user_login", "success", time.Minute)
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := AuditTrailProbe{Source: s.recs, Window: time.Hour, Target: 1}.Check(ctx, catalog.Requirement{})
	s.ErrorIs(err, context.Canceled)
	_, err = AccessControlProbe{Source: s.recs, Window: time.Hour}.Check(ctx, catalog.Requirement{})
	s.ErrorIs(err, context.Canceled)
}
