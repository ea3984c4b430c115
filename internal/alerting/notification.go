// Package alerting carries notifications out of the engine.
//
// Components publish to a Bus without knowing who listens; dashboards, the
// Redis and Kafka sinks and tests subscribe. Publishing never blocks: a slow
// subscriber loses notifications rather than stalling ingestion.
package alerting

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a notification describes.
type Kind string

const (
	KindRecordAppended     Kind = "record.appended"
	KindPatternMatched     Kind = "pattern.matched"
	KindSecurityAlert      Kind = "security.alert"
	KindComplianceAlert    Kind = "compliance.alert"
	KindComplianceGap      Kind = "compliance.gap"
	KindComplianceSummary  Kind = "compliance.summary"
	KindRetentionViolation Kind = "retention.violation"
	KindIncidentReported   Kind = "incident.reported"
	KindSubjectErased      Kind = "subject.erased"
)

// Severity is the urgency attached to a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Notification is a single event published on the bus.
// Payload is the domain object that triggered it (record, audit event,
// gap, summary) and is shared read-only between subscribers.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Category  string    `json:"category,omitempty"`
	Message   string    `json:"message"`
	Pattern   string    `json:"pattern,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New builds a notification with a fresh ID.
func New(kind Kind, severity Severity, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Timestamp: now,
	}
}

// Publisher accepts notifications. Implementations must not block.
type Publisher interface {
	Publish(n Notification)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Notification) {}
