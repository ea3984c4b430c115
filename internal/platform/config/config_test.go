package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10000, cfg.Records.CategoryCap)
	assert.Equal(t, 50000, cfg.Audit.BufferCap)
	assert.Equal(t, 24*time.Hour, cfg.Retention.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.Compliance.MonitorInterval)
	assert.Equal(t, 5*time.Second, cfg.Compliance.ProbeTimeout)
	assert.True(t, cfg.Compliance.BuiltinProbes)
	assert.InDelta(t, 0.5, cfg.Compliance.AutomatedWeight, 1e-9)
	assert.Empty(t, cfg.Postgres.URL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  addr: ":9090"
records:
  category_cap: 500
  triggers:
    - name: breach
      pattern: "data breach"
      severity: critical
retention:
  category_days:
    payments: 3650
compliance:
  category_weights:
    training: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("ATTEST_LOG_LEVEL", "debug")
	t.Setenv("ATTEST_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Records.CategoryCap)
	require.Len(t, cfg.Records.Triggers, 1)
	assert.Equal(t, "critical", cfg.Records.Triggers[0].Severity)
	assert.Equal(t, 3650, cfg.Retention.CategoryDays["payments"])
	assert.InDelta(t, 0.2, cfg.Compliance.CategoryWeights["training"], 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compliance:\n  automated_weight: 1.5\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}
