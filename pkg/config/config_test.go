package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "@hourly", cfg.Sweeper.Schedule)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BCODB_PORT", "8888")
	t.Setenv("BCODB_LOG_LEVEL", "debug")
	t.Setenv("BCODB_REDIS_ENABLED", "true")
	t.Setenv("BCODB_REDIS_DECISION_TTL", "2m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Redis.DecisionTTL)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bcodb.yaml")
	body := []byte(`
server:
  port: "7070"
  health_port: "7071"
schemas:
  workdir: /srv/schemas
log_level: warn
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("BCODB_CONFIG_FILE", path)
	t.Setenv("BCODB_PORT", "6060")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Environment wins over the file; untouched file values stick.
	assert.Equal(t, "6060", cfg.Server.Port)
	assert.Equal(t, "7071", cfg.Server.HealthPort)
	assert.Equal(t, "/srv/schemas", cfg.Schemas.Workdir)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Setenv("BCODB_HEALTH_PORT", "8080")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("BCODB_HEALTH_PORT", "9090")
	t.Setenv("BCODB_DB_DRIVER", "oracle")
	_, err = LoadConfig()
	assert.Error(t, err)
}
