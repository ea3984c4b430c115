package records

// TaggingTable assigns a ComplianceTag to records written without one.
// Category rules take precedence over level rules.
type TaggingTable struct {
	ByLevel    map[Level]ComplianceTag
	ByCategory map[string]ComplianceTag
}

// DefaultTagging returns the built-in tagging table.
func DefaultTagging() TaggingTable {
	return TaggingTable{
		ByLevel: map[Level]ComplianceTag{
			LevelDebug:      {RetentionDays: 7, Classification: ClassificationInternal},
			LevelInfo:       {RetentionDays: 90, Classification: ClassificationInternal},
			LevelWarn:       {RetentionDays: 365, Classification: ClassificationInternal},
			LevelError:      {RetentionDays: 1095, Classification: ClassificationInternal},
			LevelAudit:      {RetentionDays: 2555, Classification: ClassificationConfidential, Regulations: []string{"sox", "iso27001"}},
			LevelSecurity:   {RetentionDays: 2555, Classification: ClassificationRestricted, Regulations: []string{"iso27001"}},
			LevelCompliance: {RetentionDays: 2555, Classification: ClassificationConfidential},
		},
		ByCategory: map[string]ComplianceTag{
			CategoryDataAccess: {RetentionDays: 2555, Classification: ClassificationConfidential, Regulations: []string{"gdpr"}, ContainsPersonalData: true},
			"authentication":   {RetentionDays: 365, Classification: ClassificationConfidential, Regulations: []string{"iso27001"}, ContainsPersonalData: true},
			"payment":          {RetentionDays: 2555, Classification: ClassificationRestricted, Regulations: []string{"pci_dss", "sox"}},
			"health":           {RetentionDays: 2555, Classification: ClassificationRestricted, Regulations: []string{"hipaa"}, ContainsPersonalData: true},
		},
	}
}

// TagFor returns a fresh tag for the level and category.
func (t TaggingTable) TagFor(level Level, category string) *ComplianceTag {
	tag, ok := t.ByCategory[category]
	if !ok {
		tag, ok = t.ByLevel[level]
	}
	if !ok {
		tag = ComplianceTag{RetentionDays: 90, Classification: ClassificationInternal}
	}
	tag.Regulations = append([]string(nil), tag.Regulations...)
	return &tag
}
