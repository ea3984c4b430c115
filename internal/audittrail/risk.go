package audittrail

import (
	"strings"

	stringutil "attest/pkg/platform/strings"
)

// ComputeRisk classifies an action. Rules are evaluated in order and the
// first match wins; a warning outcome is judged like a success.
func ComputeRisk(action string, outcome Outcome) RiskLevel {
	a := strings.ToLower(action)
	if outcome == OutcomeFailure {
		switch {
		case stringutil.ContainsAny(a, "login", "access"):
			return RiskHigh
		case stringutil.ContainsAny(a, "admin", "delete"):
			return RiskCritical
		default:
			return RiskMedium
		}
	}
	if stringutil.ContainsAny(a, "admin", "delete", "modify_permissions") {
		return RiskHigh
	}
	return RiskLow
}

var regulationKeywords = []struct {
	regulation string
	keywords   []string
}{
	{"gdpr", []string{"personal", "user"}},
	{"hipaa", []string{"health", "medical"}},
	{"sox", []string{"financial", "payment"}},
	{"iso27001", []string{"security", "access"}},
}

// DeriveRegulations returns the regulations an action on a resource falls under.
func DeriveRegulations(resourceType, action string) []string {
	text := strings.ToLower(resourceType + " " + action)
	var out []string
	for _, rk := range regulationKeywords {
		if stringutil.ContainsAny(text, rk.keywords...) {
			out = append(out, rk.regulation)
		}
	}
	return out
}
