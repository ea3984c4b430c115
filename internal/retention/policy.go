// Package retention purges expired records and erases data subjects.
//
// Protected levels (audit, security, compliance) and records under legal hold
// or investigation are never deleted here; erasure anonymizes them instead.
package retention

import (
	"fmt"
	"time"

	"attest/internal/records"
)

const day = 24 * time.Hour

// Policy maps levels and categories to retention windows in days.
// It is built once at startup and never mutated.
type Policy struct {
	levelDays    map[records.Level]int
	categoryDays map[string]int
	builtinDays  map[records.Level]int
}

// DefaultLevelDays is the built-in window per level.
func DefaultLevelDays() map[records.Level]int {
	return map[records.Level]int{
		records.LevelDebug:      7,
		records.LevelInfo:       90,
		records.LevelWarn:       365,
		records.LevelError:      1095,
		records.LevelAudit:      2555,
		records.LevelSecurity:   2555,
		records.LevelCompliance: 2555,
	}
}

// DefaultPolicy returns the built-in policy with no category overrides.
func DefaultPolicy() Policy {
	return Policy{levelDays: DefaultLevelDays(), categoryDays: map[string]int{}, builtinDays: DefaultLevelDays()}
}

// NewPolicy applies overrides on top of the defaults. Unknown levels and
// non-positive windows are rejected. A protected level can only be raised.
func NewPolicy(levelDays, categoryDays map[string]int) (Policy, error) {
	p := DefaultPolicy()
	for name, days := range levelDays {
		level, err := records.ParseLevel(name)
		if err != nil {
			return Policy{}, fmt.Errorf("retention level %q: %w", name, err)
		}
		if days <= 0 {
			return Policy{}, fmt.Errorf("retention level %q: days must be positive", name)
		}
		if level.IsProtected() && days < p.levelDays[level] {
			return Policy{}, fmt.Errorf("retention level %q: protected window cannot shrink below %d days", name, p.levelDays[level])
		}
		p.levelDays[level] = days
	}
	for category, days := range categoryDays {
		if days <= 0 {
			return Policy{}, fmt.Errorf("retention category %q: days must be positive", category)
		}
		p.categoryDays[category] = days
	}
	return p, nil
}

// WindowDays is the effective window for r. A category override replaces
// the level window, except for protected levels where the longer one wins.
// A tagged retention longer than the built-in window of r's level is a floor;
// a tag merely restating that default does not pin the window.
func (p Policy) WindowDays(r *records.LogRecord) int {
	days := p.levelDays[r.Level]
	if d, ok := p.categoryDays[r.Category]; ok {
		if !r.Level.IsProtected() || d > days {
			days = d
		}
	}
	if r.ComplianceTag != nil {
		tagged := r.ComplianceTag.RetentionDays
		if tagged > p.builtinDays[r.Level] && tagged > days {
			days = tagged
		}
	}
	return days
}

// Expired reports whether r is older than its effective window at now.
func (p Policy) Expired(r *records.LogRecord, now time.Time) bool {
	cutoff := now.Add(-time.Duration(p.WindowDays(r)) * day)
	return r.Timestamp.Before(cutoff)
}

// CanDelete reports whether r may ever be removed by cleanup or erasure.
func CanDelete(r *records.LogRecord) bool {
	return !r.Level.IsProtected() && !r.LegalHold && !r.UnderInvestigation
}

// IsViolation reports a protected record past its window with no legal hold.
func (p Policy) IsViolation(r *records.LogRecord, now time.Time) bool {
	return r.Level.IsProtected() && !r.LegalHold && p.Expired(r, now)
}

// Len is the number of configured windows, levels and category overrides together.
func (p Policy) Len() int {
	return len(p.levelDays) + len(p.categoryDays)
}
