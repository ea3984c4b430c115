package records

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Criteria filters records. Zero fields match everything.
type Criteria struct {
	Levels     []Level
	Categories []string
	SubjectID  string
	From       time.Time
	To         time.Time
	Keyword    string
	Regulation string
	Limit      int
}

// IncludesCategory reports whether category can match the criteria.
func (c Criteria) IncludesCategory(category string) bool {
	return len(c.Categories) == 0 || slices.Contains(c.Categories, category)
}

// Matches applies every filter to r.
func (c Criteria) Matches(r *LogRecord) bool {
	if len(c.Levels) > 0 && !slices.Contains(c.Levels, r.Level) {
		return false
	}
	if !c.IncludesCategory(r.Category) {
		return false
	}
	if c.SubjectID != "" && r.SubjectID != c.SubjectID {
		return false
	}
	if !c.From.IsZero() && r.Timestamp.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && r.Timestamp.After(c.To) {
		return false
	}
	if c.Regulation != "" && !r.ComplianceTag.HasRegulation(c.Regulation) {
		return false
	}
	if c.Keyword != "" && !containsKeyword(r, c.Keyword) {
		return false
	}
	return true
}

// containsKeyword matches case-insensitively against the serialized record.
// HTML escaping is off so "&", "<" and ">" match literally.
func containsKeyword(r *LogRecord, keyword string) bool {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(buf.String()), strings.ToLower(keyword))
}
