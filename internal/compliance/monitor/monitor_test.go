package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attest/internal/alerting"
	"attest/internal/compliance/assessment"
	"attest/internal/compliance/catalog"
	"attest/internal/compliance/monitor"
	"attest/internal/records"
	"attest/internal/records/store/memory"
	"attest/pkg/requestcontext"
)

type MonitorSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	bus     *alerting.Bus
	sub     *alerting.Subscription
	engine  *assessment.Engine
	monitor *monitor.Monitor
	open    fixedCounter
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorSuite))
}

type fixedCounter int

func (c fixedCounter) OpenCount() int { return int(c) }

func score(v float64, err error) assessment.Probe {
	return assessment.ProbeFunc(func(context.Context, catalog.Requirement) (float64, error) {
		return v, err
	})
}

func (s *MonitorSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.bus = alerting.NewBus()
	s.sub = s.bus.Subscribe(64, alerting.KindComplianceAlert, alerting.KindComplianceSummary)
	s.open = 2

	recs, err := records.New(memory.New(100))
	s.Require().NoError(err)

	cat := catalog.Default()
	engine, err := assessment.New(cat, recs, assessment.WithProbes(assessment.NewRegistry(map[string]assessment.Probe{
		"gdpr_art_30":     score(95, nil),
		"sox_802":         score(65, nil),
		"pci_dss_req_10":  score(40, nil),
		"hipaa_164_312_b": score(100, errors.New("siem unreachable")),
		"not_in_catalog":  score(10, nil),
	})))
	s.Require().NoError(err)
	s.engine = engine

	m, err := monitor.New(cat, engine, s.open, monitor.WithPublisher(s.bus))
	s.Require().NoError(err)
	s.monitor = m
}

func (s *MonitorSuite) TearDownTest() {
	s.bus.Close()
}

func (s *MonitorSuite) drain(kind alerting.Kind) []alerting.Notification {
	var out []alerting.Notification
	for {
		select {
		case n := <-s.sub.C:
			if n.Kind == kind {
				out = append(out, n)
			}
		default:
			return out
		}
	}
}

func (s *MonitorSuite) TestCheckAlertsBelowThreshold() {
	results := s.monitor.Check(s.ctx)
	s.Len(results, 4, "probes for unknown requirements are skipped")

	alerts := s.drain(alerting.KindComplianceAlert)
	s.Require().Len(alerts, 3)

	severities := map[string]alerting.Severity{}
	for _, a := range alerts {
		res, ok := a.Payload.(monitor.ProbeResult)
		s.Require().True(ok)
		severities[res.RequirementID] = a.Severity
	}
	s.Equal(alerting.SeverityMedium, severities["sox_802"])
	s.Equal(alerting.SeverityHigh, severities["pci_dss_req_10"])
	s.Equal(alerting.SeverityHigh, severities["hipaa_164_312_b"], "failed probe scores 0")

	s.Empty(s.engine.GetAssessments(""), "monitoring never creates assessments or gaps")
}

func (s *MonitorSuite) TestSummary() {
	_, err := s.engine.Assess(s.ctx, "gdpr")
	s.Require().NoError(err)
	_, err = s.engine.Assess(requestcontext.WithTime(s.ctx, s.now.Add(-48*time.Hour)), "sox")
	s.Require().NoError(err)

	gdpr, _ := s.engine.Latest("gdpr")
	sox, _ := s.engine.Latest("sox")

	sum := s.monitor.Summary(s.ctx)
	s.Equal(7, sum.Regulations)
	s.Equal(2, sum.AssessedRegulations)
	s.Equal(1, sum.AssessmentsLast24h)
	s.Equal(2, sum.OpenIncidents)
	s.InDelta((gdpr.OverallScore+sox.OverallScore)/2, sum.OverallScore, 1e-9)

	s.Len(s.drain(alerting.KindComplianceSummary), 1)
}

func (s *MonitorSuite) TestTasks() {
	tasks := s.monitor.Tasks(time.Hour, 24*time.Hour)
	s.Require().Len(tasks, 2)
	s.Equal(time.Hour, tasks[0].Interval)
	s.Require().NoError(tasks[1].Run(s.ctx))
	s.Len(s.drain(alerting.KindComplianceSummary), 1)
}
