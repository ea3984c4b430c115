package strings

import "strings"

// ContainsAny reports whether s contains any of the substrings.
// Matching is case-sensitive; lowercase both sides for keyword rules.
func ContainsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
