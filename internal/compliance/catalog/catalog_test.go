package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"gdpr", "hipaa", "sox", "iso27001", "pci_dss", "ccpa", "ferpa"}, c.IDs())
	for _, reg := range c.List() {
		assert.NotEmpty(t, reg.Requirements, reg.ID)
	}

	gdpr, ok := c.Get("gdpr")
	require.True(t, ok)
	assert.Equal(t, "General Data Protection Regulation", gdpr.Name)

	regID, ok := c.RegulationOf("pci_dss_req_10")
	require.True(t, ok)
	assert.Equal(t, "pci_dss", regID)

	_, ok = c.Get("unknown")
	assert.False(t, ok)
}

func TestAdvice(t *testing.T) {
	c := Default()
	assert.Contains(t, c.Advice("gdpr_art_33"), "72 hours")
	assert.Equal(t, DefaultAdvice, c.Advice("ferpa_99_31"))
	assert.Equal(t, DefaultAdvice, c.Advice("nope"))
}

func TestGetReturnsCopy(t *testing.T) {
	c := Default()
	reg, _ := c.Get("sox")
	reg.Requirements[0].EvidenceTypes[0] = "tampered"
	reg.Name = "tampered"

	again, _ := c.Get("sox")
	assert.Equal(t, "Sarbanes-Oxley Act", again.Name)
	assert.NotEqual(t, "tampered", again.Requirements[0].EvidenceTypes[0])
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	reg, ok := c.Get("internal_policy")
	require.True(t, ok)
	require.Len(t, reg.Requirements, 2)
	assert.Equal(t, CategoryTraining, reg.Requirements[1].Category)
	assert.Equal(t, []string{"data_access", "audit"}, reg.Requirements[0].EvidenceTypes)
	assert.Equal(t, "route every data read through the data-access API", c.Advice("ip_logging"))
	assert.Equal(t, DefaultAdvice, c.Advice("ip_training"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	valid := Requirement{ID: "r1", Title: "t", Category: CategoryTraining, Frequency: FrequencyAnnually, Method: MethodManual}

	tests := []struct {
		name string
		regs []Regulation
	}{
		{"empty catalog", nil},
		{"no requirements", []Regulation{{ID: "a", Name: "A"}}},
		{"missing name", []Regulation{{ID: "a", Requirements: []Requirement{valid}}}},
		{"duplicate regulation", []Regulation{
			{ID: "a", Name: "A", Requirements: []Requirement{valid}},
			{ID: "a", Name: "A2", Requirements: []Requirement{{ID: "r2", Title: "t", Category: CategoryTraining, Frequency: FrequencyAnnually, Method: MethodManual}}},
		}},
		{"duplicate requirement", []Regulation{
			{ID: "a", Name: "A", Requirements: []Requirement{valid}},
			{ID: "b", Name: "B", Requirements: []Requirement{valid}},
		}},
		{"bad category", []Regulation{{ID: "a", Name: "A", Requirements: []Requirement{
			{ID: "r1", Title: "t", Category: "vibes", Frequency: FrequencyAnnually, Method: MethodManual},
		}}}},
		{"bad method", []Regulation{{ID: "a", Name: "A", Requirements: []Requirement{
			{ID: "r1", Title: "t", Category: CategoryTraining, Frequency: FrequencyAnnually, Method: "guess"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.regs, nil)
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regulations: [\n"), 0o600))
	_, err := LoadFile(path)
	assert.Error(t, err)
}
