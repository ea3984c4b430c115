// Package remediation turns compliance gaps into dated action plans.
package remediation

// Severity ranks a gap and the priority of the action that closes it.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// GapStatus tracks remediation progress.
type GapStatus string

const (
	GapIdentified GapStatus = "identified"
	GapInProgress GapStatus = "in_progress"
	GapResolved   GapStatus = "resolved"
)

// Gap is a requirement that did not reach compliant status.
type Gap struct {
	ID                string    `json:"id"`
	RegulationID      string    `json:"regulation_id"`
	RequirementID     string    `json:"requirement_id"`
	Severity          Severity  `json:"severity"`
	Score             float64   `json:"score"`
	Description       string    `json:"description"`
	Impact            string    `json:"impact"`
	RemediationAdvice string    `json:"remediation_advice"`
	TimelineDays      int       `json:"timeline_days"`
	Owner             string    `json:"owner,omitempty"`
	Status            GapStatus `json:"status"`
}

// SeverityForScore maps a requirement score to a gap severity.
func SeverityForScore(score float64) Severity {
	switch {
	case score < 30:
		return SeverityCritical
	case score < 50:
		return SeverityHigh
	case score < 70:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// TimelineDays is the days allowed to close a gap of severity s.
func TimelineDays(s Severity) int {
	switch s {
	case SeverityCritical:
		return 30
	case SeverityHigh:
		return 60
	case SeverityMedium:
		return 90
	default:
		return 120
	}
}

// EffortHours is the estimated work to close a gap of severity s.
func EffortHours(s Severity) int {
	switch s {
	case SeverityCritical:
		return 160
	case SeverityHigh:
		return 80
	case SeverityMedium:
		return 40
	default:
		return 20
	}
}
