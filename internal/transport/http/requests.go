package httptransport

import (
	"strings"

	"attest/internal/audittrail"
	"attest/internal/compliance/incident"
	"attest/internal/engine"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
)

// maxMessageLen bounds free-text fields accepted over HTTP.
const maxMessageLen = 4096

// LogRequest is the body of POST /v1/logs.
type LogRequest struct {
	Level    string           `json:"level"`
	Category string           `json:"category"`
	Message  string           `json:"message"`
	Metadata records.Metadata `json:"metadata,omitempty"`

	level records.Level
}

// Validate implements httputil.Validatable.
func (r *LogRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Message) > maxMessageLen {
		return dErrors.Newf(dErrors.CodeValidation, "message must be at most %d characters", maxMessageLen)
	}
	level, err := records.ParseLevel(strings.ToLower(strings.TrimSpace(r.Level)))
	if err != nil {
		return err
	}
	r.level = level
	r.Category = strings.TrimSpace(r.Category)
	return nil
}

// AuditRequest is the body of POST /v1/audit.
type AuditRequest struct {
	audittrail.Input
}

// Validate implements httputil.Validatable. Field rules live in the audit trail.
func (r *AuditRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Action = strings.TrimSpace(r.Action)
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	r.Outcome = audittrail.Outcome(strings.ToLower(string(r.Outcome)))
	return nil
}

// DataAccessRequest is the body of POST /v1/data-access.
type DataAccessRequest struct {
	engine.DataAccessInput
}

// Validate implements httputil.Validatable.
func (r *DataAccessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.RecordIDs) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "at most 1000 record ids per request")
	}
	return nil
}

// SecurityRequest is the body of POST /v1/security.
type SecurityRequest struct {
	engine.SecurityInput
}

// Validate implements httputil.Validatable.
func (r *SecurityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Severity = strings.ToLower(strings.TrimSpace(r.Severity))
	return nil
}

// ComplianceRequest is the body of POST /v1/compliance.
type ComplianceRequest struct {
	Regulation string           `json:"regulation"`
	Event      string           `json:"event"`
	Status     string           `json:"status"`
	Details    records.Metadata `json:"details,omitempty"`
}

// Validate implements httputil.Validatable.
func (r *ComplianceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Regulation = strings.ToLower(strings.TrimSpace(r.Regulation))
	return nil
}

// IncidentRequest is the body of POST /v1/incidents.
type IncidentRequest struct {
	incident.Input
}

// Validate implements httputil.Validatable. Field rules live in the incident manager.
func (r *IncidentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Regulation = strings.ToLower(strings.TrimSpace(r.Regulation))
	return nil
}

// IncidentPatchRequest is the body of PATCH /v1/incidents/{id}.
type IncidentPatchRequest struct {
	incident.Patch
}

// Validate implements httputil.Validatable.
func (r *IncidentPatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Status == nil && r.Severity == nil && r.Description == nil && r.Owner == nil && r.Scope == nil {
		return dErrors.New(dErrors.CodeValidation, "patch has no fields")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid status: "+string(*r.Status))
	}
	return nil
}
