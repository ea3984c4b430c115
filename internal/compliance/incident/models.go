// Package incident tracks externally reported compliance incidents through
// a forward-only lifecycle.
package incident

import "time"

// Type classifies an incident.
type Type string

const (
	TypeViolation     Type = "violation"
	TypeBreach        Type = "breach"
	TypeNonCompliance Type = "non_compliance"
	TypeAuditFinding  Type = "audit_finding"
)

// Severity is the reported impact of an incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is a lifecycle stage. Stages only move forward and closed is terminal.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusContained     Status = "contained"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

var statusRank = map[Status]int{
	StatusOpen:          0,
	StatusInvestigating: 1,
	StatusContained:     2,
	StatusResolved:      3,
	StatusClosed:        4,
}

// IsValid checks if the status is one of the lifecycle stages.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusClosed {
		return false
	}
	return statusRank[next] >= statusRank[s]
}

// Scope counts what an incident affected.
type Scope struct {
	Records  int `json:"records" validate:"gte=0"`
	Subjects int `json:"subjects" validate:"gte=0"`
	Systems  int `json:"systems" validate:"gte=0"`
}

// Incident is a reported compliance incident.
type Incident struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Regulation     string     `json:"regulation"`
	Type           Type       `json:"type"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	Scope          Scope      `json:"scope"`
	Status         Status     `json:"status"`
	ReportedBy     string     `json:"reported_by,omitempty"`
	Owner          string     `json:"owner,omitempty"`
	DetectedAt     time.Time  `json:"detected_at"`
	InvestigatedAt *time.Time `json:"investigated_at,omitempty"`
	ContainedAt    *time.Time `json:"contained_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (i *Incident) clone() *Incident {
	c := *i
	c.InvestigatedAt = copyTime(i.InvestigatedAt)
	c.ContainedAt = copyTime(i.ContainedAt)
	c.ResolvedAt = copyTime(i.ResolvedAt)
	c.ClosedAt = copyTime(i.ClosedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Input is what a reporter supplies.
type Input struct {
	Regulation  string    `json:"regulation" validate:"required"`
	Type        Type      `json:"type" validate:"required,oneof=violation breach non_compliance audit_finding"`
	Severity    Severity  `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string    `json:"description" validate:"required"`
	Scope       Scope     `json:"scope"`
	Status      Status    `json:"status,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	DetectedAt  time.Time `json:"detected_at,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status      *Status   `json:"status,omitempty"`
	Severity    *Severity `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Description *string   `json:"description,omitempty"`
	Owner       *string   `json:"owner,omitempty"`
	Scope       *Scope    `json:"scope,omitempty"`
}
