package catalog

// Evidence types used by the default catalog. An evidence type is present
// when a recent record carries it as its category or in the action, event
// or evidence_type metadata field.
const (
	EvidenceAudit             = "audit"
	EvidenceDataAccess        = "data_access"
	EvidenceSecurity          = "security"
	EvidenceErasure           = "right_to_be_forgotten"
	EvidenceAccessReview      = "access_review"
	EvidenceIncidentReport    = "incident_report"
	EvidenceEncryption        = "encryption"
	EvidenceConsent           = "consent"
	EvidenceTraining          = "training_record"
	EvidencePolicyDocument    = "policy_document"
	EvidenceRiskAssessment    = "risk_assessment"
	EvidenceBackup            = "backup"
	EvidenceDisclosureLog     = "disclosure_log"
	EvidenceChangeApproval    = "change_approval"
	EvidenceVulnerabilityScan = "vulnerability_scan"
)

// Default returns the built-in catalog: GDPR, HIPAA, SOX, ISO 27001,
// PCI-DSS, CCPA and FERPA.
func Default() *Catalog {
	c, err := New(defaultRegulations(), defaultAdvice())
	if err != nil {
		panic("catalog: invalid default catalog: " + err.Error())
	}
	return c
}

func defaultRegulations() []Regulation {
	return []Regulation{
		{
			ID:            "gdpr",
			Name:          "General Data Protection Regulation",
			Jurisdictions: []string{"EU", "EEA"},
			Industries:    []string{"all"},
			Requirements: []Requirement{
				{ID: "gdpr_art_30", Title: "Records of processing activities", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceDataAccess, EvidenceAudit}, Frequency: FrequencyContinuous, Method: MethodAutomated},
				{ID: "gdpr_art_32", Title: "Security of processing", Mandatory: true, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceEncryption, EvidenceAccessReview, EvidenceSecurity}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "gdpr_art_33", Title: "Notification of a personal data breach", Mandatory: true, Category: CategoryIncidentResponse,
					EvidenceTypes: []string{EvidenceIncidentReport}, Frequency: FrequencyContinuous, Method: MethodMixed},
				{ID: "gdpr_art_17", Title: "Right to erasure", Mandatory: true, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceErasure, EvidenceConsent}, Frequency: FrequencyMonthly, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Financial:   "up to EUR 20 million or 4% of worldwide annual turnover",
				Operational: "processing bans and mandatory audits",
			},
			Artifacts: Artifacts{
				Policies:   []string{"privacy policy", "data retention policy"},
				Procedures: []string{"data subject request handling", "breach notification"},
				Controls:   []string{"encryption at rest", "access logging"},
				Monitoring: []string{"processing activity log review"},
			},
		},
		{
			ID:            "hipaa",
			Name:          "Health Insurance Portability and Accountability Act",
			Jurisdictions: []string{"US"},
			Industries:    []string{"healthcare", "insurance"},
			Requirements: []Requirement{
				{ID: "hipaa_164_312_b", Title: "Audit controls", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceAudit, EvidenceDataAccess}, Frequency: FrequencyContinuous, Method: MethodAutomated},
				{ID: "hipaa_164_312_a", Title: "Access control", Mandatory: true, Category: CategoryAccessControl,
					EvidenceTypes: []string{EvidenceAccessReview, EvidenceSecurity}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "hipaa_164_308_a1", Title: "Security management process", Mandatory: true, Category: CategoryDocumentation,
					EvidenceTypes: []string{EvidenceRiskAssessment, EvidencePolicyDocument}, Frequency: FrequencyAnnually, Method: MethodManual},
				{ID: "hipaa_164_308_a5", Title: "Security awareness and training", Mandatory: true, Category: CategoryTraining,
					EvidenceTypes: []string{EvidenceTraining}, Frequency: FrequencyAnnually, Method: MethodManual},
			},
			Penalties: Penalties{
				Financial: "up to USD 1.9 million per violation category per year",
				Criminal:  "fines and imprisonment for knowing disclosure",
			},
			Artifacts: Artifacts{
				Policies:   []string{"security rule policies"},
				Procedures: []string{"incident response", "contingency plan"},
				Controls:   []string{"unique user identification", "automatic logoff"},
				Monitoring: []string{"information system activity review"},
			},
		},
		{
			ID:            "sox",
			Name:          "Sarbanes-Oxley Act",
			Jurisdictions: []string{"US"},
			Industries:    []string{"public_companies"},
			Requirements: []Requirement{
				{ID: "sox_404", Title: "Management assessment of internal controls", Mandatory: true, Category: CategoryAccessControl,
					EvidenceTypes: []string{EvidenceAccessReview, EvidenceChangeApproval, EvidenceAudit}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "sox_802", Title: "Retention of audit records", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceAudit, EvidenceBackup}, Frequency: FrequencyContinuous, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Financial: "fines up to USD 5 million",
				Criminal:  "imprisonment up to 20 years for record destruction",
			},
			Artifacts: Artifacts{
				Policies:   []string{"financial reporting controls"},
				Procedures: []string{"change management"},
				Controls:   []string{"segregation of duties"},
				Monitoring: []string{"quarterly control testing"},
			},
		},
		{
			ID:            "iso27001",
			Name:          "ISO/IEC 27001",
			Jurisdictions: []string{"international"},
			Industries:    []string{"all"},
			Requirements: []Requirement{
				{ID: "iso27001_a_8_15", Title: "Logging", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceAudit, EvidenceSecurity}, Frequency: FrequencyContinuous, Method: MethodAutomated},
				{ID: "iso27001_a_5_15", Title: "Access control", Mandatory: true, Category: CategoryAccessControl,
					EvidenceTypes: []string{EvidenceAccessReview}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "iso27001_a_5_24", Title: "Information security incident management", Mandatory: true, Category: CategoryIncidentResponse,
					EvidenceTypes: []string{EvidenceIncidentReport, EvidenceSecurity}, Frequency: FrequencyContinuous, Method: MethodMixed},
				{ID: "iso27001_a_8_8", Title: "Management of technical vulnerabilities", Mandatory: false, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceVulnerabilityScan}, Frequency: FrequencyMonthly, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Operational: "loss of certification",
			},
			Artifacts: Artifacts{
				Policies:   []string{"information security policy", "statement of applicability"},
				Procedures: []string{"risk treatment"},
				Controls:   []string{"annex A controls"},
				Monitoring: []string{"internal audit programme"},
			},
		},
		{
			ID:            "pci_dss",
			Name:          "Payment Card Industry Data Security Standard",
			Jurisdictions: []string{"international"},
			Industries:    []string{"payments", "retail"},
			Requirements: []Requirement{
				{ID: "pci_dss_req_3", Title: "Protect stored account data", Mandatory: true, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceEncryption}, Frequency: FrequencyQuarterly, Method: MethodAutomated},
				{ID: "pci_dss_req_7", Title: "Restrict access by business need to know", Mandatory: true, Category: CategoryAccessControl,
					EvidenceTypes: []string{EvidenceAccessReview, EvidenceDataAccess}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "pci_dss_req_10", Title: "Log and monitor all access", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceAudit, EvidenceDataAccess, EvidenceSecurity}, Frequency: FrequencyContinuous, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Financial:   "USD 5,000 to 100,000 per month from card brands",
				Operational: "loss of card processing privileges",
			},
			Artifacts: Artifacts{
				Policies:   []string{"cardholder data policy"},
				Procedures: []string{"key management"},
				Controls:   []string{"network segmentation", "file integrity monitoring"},
				Monitoring: []string{"daily log review"},
			},
		},
		{
			ID:            "ccpa",
			Name:          "California Consumer Privacy Act",
			Jurisdictions: []string{"US-CA"},
			Industries:    []string{"all"},
			Requirements: []Requirement{
				{ID: "ccpa_1798_100", Title: "Right to know", Mandatory: true, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceDataAccess, EvidenceDisclosureLog}, Frequency: FrequencyMonthly, Method: MethodMixed},
				{ID: "ccpa_1798_105", Title: "Right to delete", Mandatory: true, Category: CategoryDataProtection,
					EvidenceTypes: []string{EvidenceErasure}, Frequency: FrequencyMonthly, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Financial: "USD 2,500 per violation, USD 7,500 per intentional violation",
			},
			Artifacts: Artifacts{
				Policies:   []string{"privacy notice"},
				Procedures: []string{"consumer request verification"},
			},
		},
		{
			ID:            "ferpa",
			Name:          "Family Educational Rights and Privacy Act",
			Jurisdictions: []string{"US"},
			Industries:    []string{"education"},
			Requirements: []Requirement{
				{ID: "ferpa_99_31", Title: "Conditions for disclosure without consent", Mandatory: true, Category: CategoryAccessControl,
					EvidenceTypes: []string{EvidenceConsent, EvidenceDataAccess}, Frequency: FrequencyQuarterly, Method: MethodMixed},
				{ID: "ferpa_99_32", Title: "Record of disclosures", Mandatory: true, Category: CategoryAuditTrail,
					EvidenceTypes: []string{EvidenceDisclosureLog, EvidenceAudit}, Frequency: FrequencyContinuous, Method: MethodAutomated},
			},
			Penalties: Penalties{
				Operational: "loss of federal funding",
			},
			Artifacts: Artifacts{
				Policies:   []string{"annual notification of rights"},
				Procedures: []string{"record amendment requests"},
			},
		},
	}
}

func defaultAdvice() map[string]string {
	return map[string]string{
		"gdpr_art_30":      "log every read and write of personal data with purpose and subject",
		"gdpr_art_32":      "encrypt personal data at rest and review access quarterly",
		"gdpr_art_33":      "document breaches and notify the supervisory authority within 72 hours",
		"gdpr_art_17":      "process erasure requests through the forget-subject workflow",
		"hipaa_164_312_b":  "enable audit logging on every system holding health information",
		"hipaa_164_312_a":  "enforce unique user ids and least-privilege roles",
		"hipaa_164_308_a1": "perform and document an annual risk analysis",
		"hipaa_164_308_a5": "run security awareness training and keep attendance records",
		"sox_404":          "document control owners and approve every privileged change",
		"sox_802":          "retain audit records for seven years and protect them from deletion",
		"iso27001_a_8_15":  "centralize security logs and review them regularly",
		"iso27001_a_5_15":  "review access rights at least quarterly",
		"iso27001_a_5_24":  "maintain an incident response plan and record every incident",
		"pci_dss_req_3":    "encrypt stored card data and minimize retention",
		"pci_dss_req_7":    "restrict cardholder data access to roles that need it",
		"pci_dss_req_10":   "log all access to cardholder data and review logs daily",
		"ccpa_1798_100":    "keep a disclosure log for consumer right-to-know requests",
		"ccpa_1798_105":    "honour deletion requests and keep erasure evidence",
		"ferpa_99_32":      "record every disclosure of education records",
	}
}
