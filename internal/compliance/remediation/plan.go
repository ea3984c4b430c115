package remediation

import (
	"time"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

// Action closes one gap.
type Action struct {
	ID            string    `json:"id"`
	GapID         string    `json:"gap_id"`
	RequirementID string    `json:"requirement_id"`
	Description   string    `json:"description"`
	Priority      Severity  `json:"priority"`
	EffortHours   int       `json:"effort_hours"`
	DueDate       time.Time `json:"due_date"`
	Owner         string    `json:"owner,omitempty"`
}

// Milestone is a fixed review point gated on a subset of actions.
type Milestone struct {
	Name      string    `json:"name"`
	DueDate   time.Time `json:"due_date"`
	ActionIDs []string  `json:"action_ids"`
}

// Plan groups the actions for one regulation.
type Plan struct {
	ID               string      `json:"id"`
	RegulationID     string      `json:"regulation_id"`
	CreatedAt        time.Time   `json:"created_at"`
	Actions          []Action    `json:"actions"`
	Milestones       []Milestone `json:"milestones"`
	TotalEffortHours int         `json:"total_effort_hours"`
}

// milestoneTiers are the three review points. A nil tier gates on every action.
var milestoneTiers = []struct {
	name   string
	offset int
	tier   *Severity
}{
	{"critical remediation review", 30, ptr(SeverityCritical)},
	{"high priority remediation review", 60, ptr(SeverityHigh)},
	{"full remediation review", 120, nil},
}

func ptr(s Severity) *Severity { return &s }

// BuildPlan creates one action per open gap and always three milestones.
func BuildPlan(regulationID string, gaps []Gap, now time.Time) *Plan {
	plan := &Plan{
		ID:           uuid.NewString(),
		RegulationID: regulationID,
		CreatedAt:    now,
		Actions:      []Action{},
	}
	for _, g := range gaps {
		if g.Status == GapResolved {
			continue
		}
		a := Action{
			ID:            uuid.NewString(),
			GapID:         g.ID,
			RequirementID: g.RequirementID,
			Description:   g.RemediationAdvice,
			Priority:      g.Severity,
			EffortHours:   EffortHours(g.Severity),
			DueDate:       now.Add(time.Duration(TimelineDays(g.Severity)) * day),
			Owner:         g.Owner,
		}
		plan.Actions = append(plan.Actions, a)
		plan.TotalEffortHours += a.EffortHours
	}

	for _, m := range milestoneTiers {
		ms := Milestone{
			Name:      m.name,
			DueDate:   now.Add(time.Duration(m.offset) * day),
			ActionIDs: []string{},
		}
		for _, a := range plan.Actions {
			if m.tier == nil || a.Priority == *m.tier {
				ms.ActionIDs = append(ms.ActionIDs, a.ID)
			}
		}
		plan.Milestones = append(plan.Milestones, ms)
	}
	return plan
}
