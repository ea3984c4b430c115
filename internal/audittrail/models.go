// Package audittrail records who did what to which resource, with a risk
// level fixed at creation.
package audittrail

import (
	"time"

	"attest/internal/records"
)

// Outcome is the result of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeWarning Outcome = "warning"
)

// IsValid checks if the outcome is one of the supported values.
func (o Outcome) IsValid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure || o == OutcomeWarning
}

// RiskLevel is the sensitivity of an audit event.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Elevated reports whether the level warrants a security notification.
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Origin identifies where an action came from.
type Origin struct {
	IP    string `json:"ip,omitempty"`
	Agent string `json:"agent,omitempty"`
}

// Input is what callers supply to record an audit event.
type Input struct {
	Action       string           `json:"action" validate:"required"`
	ResourceType string           `json:"resource_type" validate:"required"`
	ResourceID   string           `json:"resource_id"`
	SubjectID    string           `json:"subject_id"`
	Outcome      Outcome          `json:"outcome" validate:"required"`
	Details      records.Metadata `json:"details,omitempty"`
	Origin       Origin           `json:"origin"`
}

// Event is a recorded audit event. RiskLevel and Regulations never change
// after creation; only SubjectID and Details are touched by anonymization.
type Event struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Action       string           `json:"action"`
	ResourceType string           `json:"resource_type"`
	ResourceID   string           `json:"resource_id,omitempty"`
	SubjectID    string           `json:"subject_id,omitempty"`
	Outcome      Outcome          `json:"outcome"`
	Details      records.Metadata `json:"details,omitempty"`
	OriginIP     string           `json:"origin_ip,omitempty"`
	OriginAgent  string           `json:"origin_agent,omitempty"`
	RiskLevel    RiskLevel        `json:"risk_level"`
	Regulations  []string         `json:"regulations,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
}

func (e *Event) clone() *Event {
	c := *e
	c.Details = e.Details.Clone()
	c.Regulations = append([]string(nil), e.Regulations...)
	return &c
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	SubjectID  string
	Action     string
	RiskLevels []RiskLevel
	From       time.Time
	To         time.Time
	Limit      int
}

func (f Filter) matches(e *Event) bool {
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if len(f.RiskLevels) > 0 {
		found := false
		for _, l := range f.RiskLevels {
			if l == e.RiskLevel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
