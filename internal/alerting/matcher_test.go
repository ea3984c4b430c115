package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher(DefaultTriggers())
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "substring is case insensitive", text: "FAILED LOGIN for bob", want: []string{"failed_login"}},
		{name: "regex trigger", text: "id=1 UNION   SELECT password", want: []string{"sql_injection"}},
		{name: "multiple triggers", text: "unauthorized privilege escalation attempt", want: []string{"unauthorized_access", "privilege_escalation"}},
		{name: "no match", text: "user logged in", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, hit := range m.Match(tt.text) {
				names = append(names, hit.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestNewMatcher_Validation(t *testing.T) {
	t.Run("empty pattern", func(t *testing.T) {
		_, err := NewMatcher([]Trigger{{Name: "empty"}})
		assert.Error(t, err)
	})
	t.Run("bad regex", func(t *testing.T) {
		_, err := NewMatcher([]Trigger{{Name: "bad", Pattern: "re:("}})
		assert.Error(t, err)
	})
	t.Run("severity defaults to medium", func(t *testing.T) {
		m, err := NewMatcher([]Trigger{{Name: "x", Pattern: "x"}})
		require.NoError(t, err)
		hits := m.Match("x")
		require.Len(t, hits, 1)
		assert.Equal(t, SeverityMedium, hits[0].Severity)
	})
}

func TestMatcher_NilIsEmpty(t *testing.T) {
	var m *Matcher
	assert.Nil(t, m.Match("anything"))
	assert.Equal(t, 0, m.Len())
}
