package alerting

import (
	"fmt"
	"regexp"
	"strings"
)

// regexPrefix marks a trigger pattern as a regular expression.
// Other patterns are case-insensitive substrings.
const regexPrefix = "re:"

// Trigger is a named pattern tested against every ingested record.
type Trigger struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Pattern  string   `mapstructure:"pattern" yaml:"pattern"`
	Severity Severity `mapstructure:"severity" yaml:"severity"`

	re    *regexp.Regexp
	lower string
}

// Matcher holds a fixed set of compiled triggers. It is safe for concurrent use.
type Matcher struct {
	triggers []Trigger
}

// NewMatcher compiles triggers. An invalid regular expression is a configuration error.
func NewMatcher(triggers []Trigger) (*Matcher, error) {
	compiled := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Pattern == "" {
			return nil, fmt.Errorf("trigger %q has empty pattern", t.Name)
		}
		if t.Severity == "" {
			t.Severity = SeverityMedium
		}
		if expr, ok := strings.CutPrefix(t.Pattern, regexPrefix); ok {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("trigger %q: %w", t.Name, err)
			}
			t.re = re
		} else {
			t.lower = strings.ToLower(t.Pattern)
		}
		compiled = append(compiled, t)
	}
	return &Matcher{triggers: compiled}, nil
}

// Match returns every trigger whose pattern occurs in text.
func (m *Matcher) Match(text string) []Trigger {
	if m == nil || len(m.triggers) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var hits []Trigger
	for _, t := range m.triggers {
		if t.re != nil {
			if t.re.MatchString(text) {
				hits = append(hits, t)
			}
			continue
		}
		if strings.Contains(lower, t.lower) {
			hits = append(hits, t)
		}
	}
	return hits
}

// Len returns the number of registered triggers.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.triggers)
}

// DefaultTriggers is the built-in trigger set used when configuration supplies none.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{Name: "failed_login", Pattern: "failed login", Severity: SeverityMedium},
		{Name: "unauthorized_access", Pattern: "unauthorized", Severity: SeverityHigh},
		{Name: "privilege_escalation", Pattern: "privilege escalation", Severity: SeverityCritical},
		{Name: "data_breach", Pattern: "data breach", Severity: SeverityCritical},
		{Name: "sql_injection", Pattern: `re:(union\s+select|'\s*or\s+1\s*=\s*1)`, Severity: SeverityHigh},
	}
}
