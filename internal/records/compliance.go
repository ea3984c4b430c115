package records

// ComplianceEvent builds a compliance-level record describing a regulatory
// event. details are copied under their own keys; event, status and
// regulation take precedence.
func ComplianceEvent(regulationID, event, status string, details Metadata) *LogRecord {
	md := details.Clone()
	if md == nil {
		md = Metadata{}
	}
	md["event"] = String(event)
	md["status"] = String(status)
	r := &LogRecord{
		Level:    LevelCompliance,
		Category: CategoryCompliance,
		Message:  event,
		Metadata: md,
	}
	if regulationID != "" {
		md["regulation"] = String(regulationID)
		r.ComplianceTag = &ComplianceTag{
			RetentionDays:  2555,
			Classification: ClassificationConfidential,
			Regulations:    []string{regulationID},
		}
	}
	return r
}
