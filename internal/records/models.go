// Package records is the event store: category-partitioned, size-bounded
// storage of structured log records with search and export.
package records

import (
	"time"

	dErrors "attest/pkg/domain-errors"
)

// Level is the severity class of a record. The last three are protected
// from time-based deletion.
type Level string

const (
	LevelDebug      Level = "debug"
	LevelInfo       Level = "info"
	LevelWarn       Level = "warn"
	LevelError      Level = "error"
	LevelAudit      Level = "audit"
	LevelSecurity   Level = "security"
	LevelCompliance Level = "compliance"
)

// Levels lists every level in ascending order.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelAudit, LevelSecurity, LevelCompliance}

// IsValid checks if the level is one of the supported values.
func (l Level) IsValid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelAudit, LevelSecurity, LevelCompliance:
		return true
	}
	return false
}

// IsProtected reports whether records at this level are immune to retention expiry.
func (l Level) IsProtected() bool {
	return l == LevelAudit || l == LevelSecurity || l == LevelCompliance
}

// ParseLevel creates a Level from a string, validating it.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid level: "+s)
	}
	return l, nil
}

// Classification is the data sensitivity of a record.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// Well-known categories used by the engine's own writers.
const (
	CategoryAudit      = "audit"
	CategorySecurity   = "security"
	CategoryCompliance = "compliance"
	CategoryDataAccess = "data_access"
)

// AnonymizedSubject replaces a subject identifier that could not be deleted.
const AnonymizedSubject = "anonymized"

// ComplianceTag carries the retention and regulatory classification of a record.
type ComplianceTag struct {
	RetentionDays        int            `json:"retention_days" yaml:"retention_days"`
	Classification       Classification `json:"classification" yaml:"classification" validate:"omitempty,oneof=public internal confidential restricted"`
	Regulations          []string       `json:"regulations,omitempty" yaml:"regulations,omitempty"`
	ContainsPersonalData bool           `json:"contains_personal_data" yaml:"contains_personal_data"`
}

// HasRegulation reports whether the tag lists the regulation id.
func (t *ComplianceTag) HasRegulation(id string) bool {
	if t == nil {
		return false
	}
	for _, r := range t.Regulations {
		if r == id {
			return true
		}
	}
	return false
}

// Context locates where a record was produced.
type Context struct {
	Module         string `json:"module,omitempty" yaml:"module,omitempty"`
	Function       string `json:"function,omitempty" yaml:"function,omitempty"`
	RequestID      string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
}

// LogRecord is a single stored event.
type LogRecord struct {
	ID            string         `json:"id" yaml:"id"`
	Timestamp     time.Time      `json:"timestamp" yaml:"timestamp"`
	Level         Level          `json:"level" yaml:"level" validate:"required"`
	Category      string         `json:"category" yaml:"category" validate:"required,max=128"`
	Message       string         `json:"message" yaml:"message" validate:"required"`
	SubjectID     string         `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	Context       *Context       `json:"context,omitempty" yaml:"context,omitempty"`
	Metadata      Metadata       `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ComplianceTag *ComplianceTag `json:"compliance_tag,omitempty" yaml:"compliance_tag,omitempty"`

	LegalHold          bool `json:"legal_hold,omitempty" yaml:"legal_hold,omitempty"`
	UnderInvestigation bool `json:"under_investigation,omitempty" yaml:"under_investigation,omitempty"`
	Anonymized         bool `json:"anonymized,omitempty" yaml:"anonymized,omitempty"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (r *LogRecord) Clone() *LogRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Context != nil {
		ctx := *r.Context
		c.Context = &ctx
	}
	if r.ComplianceTag != nil {
		tag := *r.ComplianceTag
		tag.Regulations = append([]string(nil), r.ComplianceTag.Regulations...)
		c.ComplianceTag = &tag
	}
	c.Metadata = r.Metadata.Clone()
	return &c
}

// Anonymize strips the subject identifier and flags the record.
func (r *LogRecord) Anonymize() {
	r.SubjectID = AnonymizedSubject
	r.Anonymized = true
	if r.Metadata == nil {
		r.Metadata = Metadata{}
	}
	r.Metadata["anonymized"] = Bool(true)
}
