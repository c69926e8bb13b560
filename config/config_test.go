package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Router.DiscoveryTTL)
	assert.Equal(t, 2*time.Second, cfg.Router.ProbeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Router.ResourceTTL)
	assert.Equal(t, 0.5, cfg.Breaker.FailureRateThreshold)
	assert.Equal(t, 5, cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 2, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, 50, cfg.Batch.MaxConcurrency)
	assert.False(t, cfg.Database.Enabled)
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv("DISCOVERY_TTL", "45s")
	t.Setenv("BREAKER_CONSECUTIVE_FAILURES", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Router.DiscoveryTTL)
	assert.Equal(t, 3, cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")

	_, err := New()
	assert.Error(t, err)
}

func TestLoadBackendsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backends.yaml")

	content := `backends:
  - url: http://localhost:11434
    name: workstation
    priority_tier: 0
  - url: http://gpu-box:11434
    name: gpu-box
    priority_tier: 1
    kind: remote
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	backends, err := LoadBackendsFile(path)
	require.NoError(t, err)
	require.Len(t, backends, 2)

	assert.Equal(t, "workstation", backends[0].Name)
	assert.Equal(t, "local", backends[0].Kind, "kind should be inferred from URL")
	assert.Equal(t, "remote", backends[1].Kind)
	assert.Equal(t, 1, backends[1].PriorityTier)
}

func TestLoadBackendsFileMissing(t *testing.T) {
	_, err := LoadBackendsFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBackendsFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backends.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backends: []\n"), 0o600))

	_, err := LoadBackendsFile(path)
	assert.Error(t, err)
}

func TestConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "r", SSLMode: "disable"}
	assert.Contains(t, d.ConnString(), "host=db")

	d.ConnectionString = "postgres://u:p@db/r"
	assert.Equal(t, "postgres://u:p@db/r", d.ConnString())
	assert.Equal(t, "DATABASE_URL", d.LogString())
}
