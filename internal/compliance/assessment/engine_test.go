package assessment

//go:generate mockgen -source=probe.go -destination=mocks/mocks.go -package=mocks Probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attest/internal/alerting"
	"attest/internal/compliance/assessment/mocks"
	"attest/internal/compliance/catalog"
	"attest/internal/compliance/remediation"
	"attest/internal/records"
	"attest/internal/records/store/memory"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/sentinel"
	"attest/pkg/requestcontext"
)

// =============================================================================
// Engine Test Suite
// =============================================================================
// Justification for unit tests: scoring, status thresholds and gap derivation
// are pure functions of probe results and evidence, and probe failure
// isolation cannot be observed end to end without controlling the probes.

type EngineSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ctx     context.Context
	now     time.Time
	catalog *catalog.Catalog
	records *records.Service
	bus     *alerting.Bus
	sub     *alerting.Subscription
	logging *mocks.MockProbe
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.bus = alerting.NewBus()
	s.sub = s.bus.Subscribe(64, alerting.KindComplianceGap)
	s.logging = mocks.NewMockProbe(s.ctrl)

	cat, err := catalog.New([]catalog.Regulation{{
		ID:   "test_reg",
		Name: "Test Regulation",
		Requirements: []catalog.Requirement{
			{ID: "r_logging", Title: "Logging", Mandatory: true, Category: catalog.CategoryAuditTrail,
				EvidenceTypes: []string{"data_access", "admin_export"}, Frequency: catalog.FrequencyContinuous, Method: catalog.MethodAutomated},
			{ID: "r_training", Title: "Training", Category: catalog.CategoryTraining,
				EvidenceTypes: []string{"training_record"}, Frequency: catalog.FrequencyAnnually, Method: catalog.MethodManual},
			{ID: "r_incident", Title: "Incidents", Mandatory: true, Category: catalog.CategoryIncidentResponse,
				EvidenceTypes: []string{"incident_report"}, Frequency: catalog.FrequencyContinuous, Method: catalog.MethodMixed},
		},
		Penalties: catalog.Penalties{Financial: "large fines"},
	}}, map[string]string{"r_incident": "write an incident plan"})
	s.Require().NoError(err)
	s.catalog = cat

	recs, err := records.New(memory.New(100))
	s.Require().NoError(err)
	s.records = recs

	s.append(records.LogRecord{Level: records.LevelInfo, Category: "data_access", Message: "read"}, time.Hour)
	s.append(records.LogRecord{
		Level: records.LevelAudit, Category: records.CategoryAudit, Message: "export",
		Metadata: records.Metadata{"action": records.String("admin_export")},
	}, time.Hour)
	// Outside the evidence window.
	s.append(records.LogRecord{Level: records.LevelInfo, Category: "training_record", Message: "old"}, 40*24*time.Hour)
}

func (s *EngineSuite) TearDownTest() {
	s.bus.Close()
	s.ctrl.Finish()
}

func (s *EngineSuite) append(r records.LogRecord, age time.Duration) {
	_, err := s.records.Append(requestcontext.WithTime(s.ctx, s.now.Add(-age)), &r)
	s.Require().NoError(err)
}

func (s *EngineSuite) engine(probes map[string]Probe, opts ...Option) *Engine {
	opts = append([]Option{WithProbes(NewRegistry(probes)), WithPublisher(s.bus)}, opts...)
	e, err := New(s.catalog, s.records, opts...)
	s.Require().NoError(err)
	return e
}

func (s *EngineSuite) drain() []alerting.Notification {
	var out []alerting.Notification
	for {
		select {
		case n := <-s.sub.C:
			out = append(out, n)
		default:
			return out
		}
	}
}

func (s *EngineSuite) requirement(a *Assessment, id string) RequirementAssessment {
	for _, r := range a.Requirements {
		if r.RequirementID == id {
			return r
		}
	}
	s.FailNow("requirement not found: " + id)
	return RequirementAssessment{}
}

// =============================================================================
// Assess
// =============================================================================

func (s *EngineSuite) TestAssessScoresRequirements() {
	s.logging.EXPECT().Check(gomock.Any(), gomock.Any()).Return(100.0, nil)
	e := s.engine(map[string]Probe{
		"r_logging": s.logging,
		"r_incident": ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) {
			return 0, errors.New("pager api unreachable")
		}),
	})

	a, err := e.Assess(s.ctx, "test_reg")
	s.Require().NoError(err)

	logging := s.requirement(a, "r_logging")
	s.Equal(100.0, logging.Score)
	s.Equal(StatusCompliant, logging.Status)
	s.ElementsMatch([]string{"data_access", "admin_export"}, logging.EvidenceFound)

	training := s.requirement(a, "r_training")
	s.Equal(missingProbeScore, training.AutomatedScore)
	s.Equal(0.0, training.EvidenceScore, "evidence outside the window is ignored")
	s.Equal(25.0, training.Score)
	s.Equal(StatusNonCompliant, training.Status)

	incident := s.requirement(a, "r_incident")
	s.Equal(0.0, incident.Score)
	s.Contains(incident.ProbeError, "pager api unreachable")

	s.InDelta((100.0+25.0+0.0)/3, a.OverallScore, 1e-9)
	s.Equal(StatusNonCompliant, a.Status)
	s.Equal(s.now.Add(90*24*time.Hour), a.NextAssessmentDue)
}

func (s *EngineSuite) TestOverallScoreIsMeanOfRequirementScores() {
	s.logging.EXPECT().Check(gomock.Any(), gomock.Any()).Return(33.333, nil)
	e := s.engine(map[string]Probe{"r_logging": s.logging})

	a, err := e.Assess(s.ctx, "test_reg")
	s.Require().NoError(err)

	var sum float64
	for _, r := range a.Requirements {
		sum += r.Score
	}
	s.InDelta(sum/float64(len(a.Requirements)), a.OverallScore, 1e-9)
}

func (s *EngineSuite) TestGapsOnlyForNonCompliantRequirements() {
	s.logging.EXPECT().Check(gomock.Any(), gomock.Any()).Return(40.0, nil)
	e := s.engine(map[string]Probe{"r_logging": s.logging})

	a, err := e.Assess(s.ctx, "test_reg")
	s.Require().NoError(err)

	compliant := map[string]bool{}
	for _, r := range a.Requirements {
		compliant[r.RequirementID] = r.Status == StatusCompliant
	}
	s.Require().Len(a.Gaps, 3)
	for _, g := range a.Gaps {
		s.False(compliant[g.RequirementID], g.RequirementID)
	}

	logging := s.requirement(a, "r_logging")
	s.Equal(70.0, logging.Score)
	s.Equal(StatusPartial, logging.Status)

	byReq := map[string]remediation.Gap{}
	for _, g := range a.Gaps {
		byReq[g.RequirementID] = g
	}
	s.Equal(remediation.SeverityLow, byReq["r_logging"].Severity)
	s.Equal(120, byReq["r_logging"].TimelineDays)
	s.Equal(remediation.SeverityCritical, byReq["r_incident"].Severity)
	s.Equal("write an incident plan", byReq["r_incident"].RemediationAdvice)
	s.Equal(catalog.DefaultAdvice, byReq["r_training"].RemediationAdvice)
	s.Contains(byReq["r_incident"].Impact, "large fines")

	s.Require().NotNil(a.RemediationPlan)
	s.Len(a.RemediationPlan.Actions, 3)
	s.Len(a.RemediationPlan.Milestones, 3)

	s.Len(s.drain(), 3)
}

func (s *EngineSuite) TestProbeFailuresAreIsolated() {
	s.Run("panic", func() {
		s.logging.EXPECT().Check(gomock.Any(), gomock.Any()).Return(100.0, nil)
		e := s.engine(map[string]Probe{
			"r_logging": s.logging,
			"r_incident": ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) {
				panic("nil map")
			}),
		})
		a, err := e.Assess(s.ctx, "test_reg")
		s.Require().NoError(err)
		incident := s.requirement(a, "r_incident")
		s.Equal(0.0, incident.Score)
		s.Equal(StatusNonCompliant, incident.Status)
		s.Contains(incident.ProbeError, "panicked")
		s.Equal(100.0, s.requirement(a, "r_logging").Score)
	})

	s.Run("timeout", func() {
		e := s.engine(map[string]Probe{
			"r_incident": ProbeFunc(func(ctx context.Context, _ catalog.Requirement) (float64, error) {
				<-ctx.Done()
				return 100, ctx.Err()
			}),
		}, WithProbeTimeout(20*time.Millisecond))
		a, err := e.Assess(s.ctx, "test_reg")
		s.Require().NoError(err)
		s.Equal(0.0, s.requirement(a, "r_incident").AutomatedScore)
		s.NotEmpty(s.requirement(a, "r_incident").ProbeError)
	})

	s.Run("out of range", func() {
		e := s.engine(map[string]Probe{
			"r_incident": ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) {
				return 140, nil
			}),
		})
		a, err := e.Assess(s.ctx, "test_reg")
		s.Require().NoError(err)
		s.Equal(0.0, s.requirement(a, "r_incident").AutomatedScore)
	})
}

func (s *EngineSuite) TestScoringPolicyCategoryWeights() {
	policy, err := NewScoringPolicy(0.5, map[string]float64{"training": 1})
	s.Require().NoError(err)
	e := s.engine(nil, WithScoringPolicy(policy))

	a, err := e.Assess(s.ctx, "test_reg")
	s.Require().NoError(err)
	s.Equal(missingProbeScore, s.requirement(a, "r_training").Score)
}

func (s *EngineSuite) TestUnknownRegulation() {
	e := s.engine(nil)
	_, err := e.Assess(s.ctx, "nope")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// History
// =============================================================================

func (s *EngineSuite) TestHistoryIsAppended() {
	e := s.engine(nil)

	first, err := e.Assess(s.ctx, "test_reg")
	s.Require().NoError(err)
	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Hour))
	second, err := e.Assess(later, "test_reg")
	s.Require().NoError(err)

	hist := e.GetAssessments("test_reg")
	s.Require().Len(hist, 2)
	s.Equal(first.ID, hist[0].ID)
	s.Equal(second.ID, hist[1].ID)
	s.Len(e.GetAssessments(""), 2)
	s.Empty(e.GetAssessments("other"))

	latest, ok := e.Latest("test_reg")
	s.Require().True(ok)
	s.Equal(second.ID, latest.ID)

	s.Equal(1, e.CountSince(s.now.Add(time.Minute)))

	latest.Requirements[0].Score = -1
	again, _ := e.Latest("test_reg")
	s.NotEqual(-1.0, again.Requirements[0].Score)
}

func TestNew_Validation(t *testing.T) {
	recs, _ := records.New(memory.New(1))
	if _, err := New(nil, recs); err == nil {
		t.Fatal("expected error for nil catalog")
	}
	if _, err := New(catalog.Default(), nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestNewScoringPolicy_Validation(t *testing.T) {
	if _, err := NewScoringPolicy(1.5, nil); err == nil {
		t.Fatal("expected error for weight above 1")
	}
	if _, err := NewScoringPolicy(0.5, map[string]float64{"training": -0.1}); err == nil {
		t.Fatal("expected error for negative category weight")
	}
}

func TestRunProbe_TimeoutIsSentinel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) {
		<-release
		return 100, nil
	})

	score, err := RunProbe(context.Background(), stuck, catalog.Requirement{ID: "r_stuck"}, 10*time.Millisecond)
	if score != 0 {
		t.Fatalf("expected score 0, got %v", score)
	}
	if !errors.Is(err, sentinel.ErrTimeout) {
		t.Fatalf("expected timeout sentinel, got %v", err)
	}
}
