package engine

import (
	"context"
	"strings"

	"attest/internal/alerting"
	"attest/internal/audittrail"
	"attest/internal/records"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/requestcontext"
)

// DataAccessInput describes one access to personal data.
type DataAccessInput struct {
	SubjectID string            `json:"subject_id"`
	DataType  string            `json:"data_type"`
	Operation string            `json:"operation"`
	RecordIDs []string          `json:"record_ids,omitempty"`
	Purpose   string            `json:"purpose,omitempty"`
	Origin    audittrail.Origin `json:"origin"`
}

// SecurityInput describes a security event.
type SecurityInput struct {
	Event     string           `json:"event"`
	Severity  string           `json:"severity"`
	Details   records.Metadata `json:"details,omitempty"`
	SubjectID string           `json:"subject_id,omitempty"`
}

var securitySeverities = map[string]alerting.Severity{
	"low":      alerting.SeverityLow,
	"medium":   alerting.SeverityMedium,
	"high":     alerting.SeverityHigh,
	"critical": alerting.SeverityCritical,
}

// Log stores a general record.
func (e *Engine) Log(ctx context.Context, level records.Level, category, message string, metadata records.Metadata) error {
	return e.append(ctx, &records.LogRecord{
		Level:    level,
		Category: category,
		Message:  message,
		Metadata: metadata,
	})
}

// Audit records an audit event.
func (e *Engine) Audit(ctx context.Context, in audittrail.Input) error {
	_, err := e.trail.Record(ctx, in)
	return err
}

// DataAccess records an access to personal data. It is stored at audit
// level in the data_access category so it is immune to time-based cleanup.
func (e *Engine) DataAccess(ctx context.Context, in DataAccessInput) error {
	if blank(in.SubjectID) || blank(in.DataType) || blank(in.Operation) {
		return dErrors.New(dErrors.CodeValidation, "subject, data type and operation are required")
	}
	if in.Origin.IP == "" {
		in.Origin.IP = requestcontext.ClientIP(ctx)
	}
	if in.Origin.Agent == "" {
		in.Origin.Agent = requestcontext.Device(ctx)
	}

	meta := records.Metadata{
		"data_type": records.String(in.DataType),
		"operation": records.String(in.Operation),
	}
	if len(in.RecordIDs) > 0 {
		meta["record_ids"] = records.Strings(in.RecordIDs...)
	}
	if in.Purpose != "" {
		meta["purpose"] = records.String(in.Purpose)
	}
	if in.Origin.IP != "" || in.Origin.Agent != "" {
		meta["origin"] = records.Map(map[string]records.Value{
			"ip":    records.String(in.Origin.IP),
			"agent": records.String(in.Origin.Agent),
		})
	}
	return e.append(ctx, &records.LogRecord{
		Level:     records.LevelAudit,
		Category:  records.CategoryDataAccess,
		Message:   in.Operation + " " + in.DataType,
		SubjectID: in.SubjectID,
		Metadata:  meta,
	})
}

// Security records a security event. High and critical events also raise
// a security alert.
func (e *Engine) Security(ctx context.Context, in SecurityInput) error {
	if blank(in.Event) {
		return dErrors.New(dErrors.CodeValidation, "security event is required")
	}
	severity, ok := securitySeverities[in.Severity]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "invalid severity: "+in.Severity)
	}

	meta := in.Details.Clone()
	if meta == nil {
		meta = records.Metadata{}
	}
	meta["event"] = records.String(in.Event)
	meta["severity"] = records.String(in.Severity)

	rec := &records.LogRecord{
		Level:     records.LevelSecurity,
		Category:  records.CategorySecurity,
		Message:   in.Event,
		SubjectID: in.SubjectID,
		Metadata:  meta,
	}
	if err := e.append(ctx, rec); err != nil {
		return err
	}

	if severity == alerting.SeverityHigh || severity == alerting.SeverityCritical {
		n := alerting.New(alerting.KindSecurityAlert, severity, in.Event, requestcontext.Now(ctx))
		n.Category = records.CategorySecurity
		n.Payload = in
		e.bus.Publish(n)
	}
	return nil
}

// Compliance records a compliance event against a regulation.
func (e *Engine) Compliance(ctx context.Context, regulationID, event, status string, details records.Metadata) error {
	if blank(event) || blank(status) {
		return dErrors.New(dErrors.CodeValidation, "event and status are required")
	}
	if regulationID != "" {
		if _, ok := e.catalog.Get(regulationID); !ok {
			return dErrors.New(dErrors.CodeValidation, "unknown regulation: "+regulationID)
		}
	}
	return e.append(ctx, records.ComplianceEvent(regulationID, event, status, details))
}

// append stores rec and swallows everything but validation errors.
func (e *Engine) append(ctx context.Context, rec *records.LogRecord) error {
	if _, err := e.records.Append(ctx, rec); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return err
		}
		e.logger.ErrorContext(ctx, "failed to store record",
			"level", rec.Level,
			"category", rec.Category,
			"error", err,
		)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
