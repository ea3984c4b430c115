package remediation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{0, SeverityCritical},
		{29.99, SeverityCritical},
		{30, SeverityHigh},
		{49.5, SeverityHigh},
		{50, SeverityMedium},
		{69.99, SeverityMedium},
		{70, SeverityLow},
		{84, SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityForScore(tt.score), "score %v", tt.score)
	}
}

func TestBuildPlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	gaps := []Gap{
		{ID: "g1", RequirementID: "r1", Severity: SeverityCritical, RemediationAdvice: "fix r1", Status: GapIdentified},
		{ID: "g2", RequirementID: "r2", Severity: SeverityHigh, RemediationAdvice: "fix r2", Status: GapIdentified},
		{ID: "g3", RequirementID: "r3", Severity: SeverityLow, RemediationAdvice: "fix r3", Status: GapInProgress},
		{ID: "g4", RequirementID: "r4", Severity: SeverityMedium, Status: GapResolved},
	}

	plan := BuildPlan("gdpr", gaps, now)

	require.Len(t, plan.Actions, 3)
	assert.Equal(t, 160+80+20, plan.TotalEffortHours)
	assert.Equal(t, SeverityCritical, plan.Actions[0].Priority)
	assert.Equal(t, now.Add(30*day), plan.Actions[0].DueDate)
	assert.Equal(t, now.Add(60*day), plan.Actions[1].DueDate)
	assert.Equal(t, now.Add(120*day), plan.Actions[2].DueDate)
	assert.Equal(t, "fix r1", plan.Actions[0].Description)

	require.Len(t, plan.Milestones, 3)
	assert.Equal(t, now.Add(30*day), plan.Milestones[0].DueDate)
	assert.Equal(t, []string{plan.Actions[0].ID}, plan.Milestones[0].ActionIDs)
	assert.Equal(t, []string{plan.Actions[1].ID}, plan.Milestones[1].ActionIDs)
	assert.Len(t, plan.Milestones[2].ActionIDs, 3)
	assert.Equal(t, now.Add(120*day), plan.Milestones[2].DueDate)
}

func TestBuildPlan_NoGaps(t *testing.T) {
	plan := BuildPlan("sox", nil, time.Now())
	assert.Empty(t, plan.Actions)
	assert.Len(t, plan.Milestones, 3)
	assert.Zero(t, plan.TotalEffortHours)
}
