// Package assessment scores regulations against recent evidence and
// pluggable automated probes.
package assessment

import (
	"time"

	"attest/internal/compliance/catalog"
	"attest/internal/compliance/remediation"
)

// Status is a compliance verdict for a requirement or a regulation.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusPartial      Status = "partial"
	StatusNonCompliant Status = "non_compliant"
	StatusNotAssessed  Status = "not_assessed"
)

// RequirementStatus maps a requirement score: >=85 compliant, >=60 partial.
func RequirementStatus(score float64) Status {
	switch {
	case score >= 85:
		return StatusCompliant
	case score >= 60:
		return StatusPartial
	default:
		return StatusNonCompliant
	}
}

// RegulationStatus maps an overall score: >=90 compliant, >=70 partial.
func RegulationStatus(score float64) Status {
	switch {
	case score >= 90:
		return StatusCompliant
	case score >= 70:
		return StatusPartial
	default:
		return StatusNonCompliant
	}
}

// RequirementAssessment is the result for one requirement in one run.
type RequirementAssessment struct {
	RequirementID  string           `json:"requirement_id"`
	Title          string           `json:"title"`
	Category       catalog.Category `json:"category"`
	Score          float64          `json:"score"`
	AutomatedScore float64          `json:"automated_score"`
	EvidenceScore  float64          `json:"evidence_score"`
	Status         Status           `json:"status"`
	EvidenceFound  []string         `json:"evidence_found"`
	Gaps           []string         `json:"gaps,omitempty"`
	ProbeError     string           `json:"probe_error,omitempty"`
	AssessedAt     time.Time        `json:"assessed_at"`
}

// Assessment is one run over a regulation. OverallScore is the mean of the
// requirement scores.
type Assessment struct {
	ID                string                  `json:"id"`
	RegulationID      string                  `json:"regulation_id"`
	AssessedAt        time.Time               `json:"assessed_at"`
	OverallScore      float64                 `json:"overall_score"`
	Status            Status                  `json:"status"`
	Requirements      []RequirementAssessment `json:"requirements"`
	Gaps              []remediation.Gap       `json:"gaps"`
	RemediationPlan   *remediation.Plan       `json:"remediation_plan,omitempty"`
	NextAssessmentDue time.Time               `json:"next_assessment_due"`
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	c := *a
	c.Requirements = make([]RequirementAssessment, len(a.Requirements))
	for i, r := range a.Requirements {
		r.EvidenceFound = append([]string(nil), r.EvidenceFound...)
		r.Gaps = append([]string(nil), r.Gaps...)
		c.Requirements[i] = r
	}
	c.Gaps = append([]remediation.Gap(nil), a.Gaps...)
	if a.RemediationPlan != nil {
		p := *a.RemediationPlan
		p.Actions = append([]remediation.Action(nil), a.RemediationPlan.Actions...)
		p.Milestones = make([]remediation.Milestone, len(a.RemediationPlan.Milestones))
		for i, m := range a.RemediationPlan.Milestones {
			m.ActionIDs = append([]string(nil), m.ActionIDs...)
			p.Milestones[i] = m
		}
		c.RemediationPlan = &p
	}
	return &c
}
