package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/records"
)

func TestCanDelete(t *testing.T) {
	tests := []struct {
		name string
		rec  records.LogRecord
		want bool
	}{
		{"info", records.LogRecord{Level: records.LevelInfo}, true},
		{"audit", records.LogRecord{Level: records.LevelAudit}, false},
		{"security", records.LogRecord{Level: records.LevelSecurity}, false},
		{"compliance", records.LogRecord{Level: records.LevelCompliance}, false},
		{"legal hold", records.LogRecord{Level: records.LevelDebug, LegalHold: true}, false},
		{"investigation", records.LogRecord{Level: records.LevelWarn, UnderInvestigation: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDelete(&tt.rec))
		})
	}
}

func TestPolicy_WindowDays(t *testing.T) {
	p, err := NewPolicy(map[string]int{"info": 30}, map[string]int{"payment": 400})
	require.NoError(t, err)

	assert.Equal(t, 30, p.WindowDays(&records.LogRecord{Level: records.LevelInfo, Category: "app"}))
	assert.Equal(t, 400, p.WindowDays(&records.LogRecord{Level: records.LevelInfo, Category: "payment"}))
	assert.Equal(t, 400, p.WindowDays(&records.LogRecord{Level: records.LevelError, Category: "payment"}))
	assert.Equal(t, 500, p.WindowDays(&records.LogRecord{
		Level: records.LevelInfo, Category: "payment",
		ComplianceTag: &records.ComplianceTag{RetentionDays: 500},
	}))
}

func TestPolicy_CategoryOverrideShortensUnprotectedLevels(t *testing.T) {
	p, err := NewPolicy(map[string]int{"info": 30}, map[string]int{"debug_noise": 1, "audit": 10})
	require.NoError(t, err)
	tagging := records.DefaultTagging()

	tests := []struct {
		name string
		rec  records.LogRecord
		want int
	}{
		{
			name: "override below level window",
			rec:  records.LogRecord{Level: records.LevelDebug, Category: "debug_noise"},
			want: 1,
		},
		{
			name: "default tag does not pin the override",
			rec: records.LogRecord{Level: records.LevelDebug, Category: "debug_noise",
				ComplianceTag: tagging.TagFor(records.LevelDebug, "debug_noise")},
			want: 1,
		},
		{
			name: "default tag does not pin a shortened level",
			rec: records.LogRecord{Level: records.LevelInfo, Category: "app",
				ComplianceTag: tagging.TagFor(records.LevelInfo, "app")},
			want: 30,
		},
		{
			name: "regulatory tag is still a floor",
			rec: records.LogRecord{Level: records.LevelDebug, Category: "debug_noise",
				ComplianceTag: &records.ComplianceTag{RetentionDays: 365}},
			want: 365,
		},
		{
			name: "protected level never shrinks",
			rec:  records.LogRecord{Level: records.LevelAudit, Category: "audit"},
			want: 2555,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.WindowDays(&tt.rec))
		})
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, p.Expired(&records.LogRecord{Level: records.LevelDebug, Category: "debug_noise", Timestamp: now.Add(-2 * day)}, now))
}

func TestPolicy_Expired(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.Expired(&records.LogRecord{Level: records.LevelDebug, Timestamp: now.Add(-8 * day)}, now))
	assert.False(t, p.Expired(&records.LogRecord{Level: records.LevelDebug, Timestamp: now.Add(-6 * day)}, now))
	assert.True(t, p.IsViolation(&records.LogRecord{Level: records.LevelAudit, Timestamp: now.Add(-2556 * day)}, now))
	assert.False(t, p.IsViolation(&records.LogRecord{Level: records.LevelAudit, LegalHold: true, Timestamp: now.Add(-2556 * day)}, now))
}

func TestNewPolicy_Validation(t *testing.T) {
	_, err := NewPolicy(map[string]int{"verbose": 10}, nil)
	assert.Error(t, err)

	_, err = NewPolicy(map[string]int{"info": 0}, nil)
	assert.Error(t, err)

	_, err = NewPolicy(map[string]int{"audit": 30}, nil)
	assert.Error(t, err, "protected windows cannot shrink")

	_, err = NewPolicy(nil, map[string]int{"payment": -1})
	assert.Error(t, err)

	p, err := NewPolicy(map[string]int{"audit": 3650}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3650, p.WindowDays(&records.LogRecord{Level: records.LevelAudit}))
}
