package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mesh-api/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const minimalConfig = `
regions:
  - id: us-east-1
    geo_prefixes: [US, CA]
    endpoint: http://us-east-1.mesh.internal:8080/api/v1/health/live
    active: true
`

func TestDefaultsApplied(t *testing.T) {
	cfg, err := config.LoadConfigFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Health.ProbeInterval)
	assert.Equal(t, 2*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, 20, cfg.Health.WindowSize)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 3, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 3, cfg.Pool.ReplicasPerRegion)
	assert.Equal(t, 2*time.Second, cfg.Pool.LeaseWait)
	assert.Equal(t, 100.0, cfg.RateLimit.RPS)
}

func TestFileValuesOverrideDefaults(t *testing.T) {
	cfg, err := config.LoadConfigFile(writeConfig(t, `
server:
  port: 9090
breaker:
  failure_threshold: 10
  recovery_timeout: 1m
`+minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Breaker.RecoveryTimeout)
}

func TestRegionCatalogParsed(t *testing.T) {
	cfg, err := config.LoadConfigFile(writeConfig(t, `
regions:
  - id: us-east-1
    geo_prefixes: [US, CA]
    endpoint: http://us-east-1.mesh.internal:8080/api/v1/health/live
    active: true
  - id: eu-west-1
    geo_prefixes: [GB, DE]
    active: false
`))
	require.NoError(t, err)

	require.Len(t, cfg.Regions, 2)
	assert.Equal(t, []string{"US", "CA"}, cfg.Regions[0].GeoPrefixes)
	require.Len(t, cfg.ActiveRegions(), 1)
	assert.Equal(t, "us-east-1", cfg.ActiveRegions()[0].ID)

	models := cfg.RegionModels()
	require.Len(t, models, 2)
	assert.Equal(t, "eu-west-1", models[1].ID)
	assert.False(t, models[1].Active)
}

func TestRejectsCatalogWithoutRegions(t *testing.T) {
	_, err := config.LoadConfigFile(writeConfig(t, `
server:
  port: 8080
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRejectsCatalogWithoutActiveRegion(t *testing.T) {
	_, err := config.LoadConfigFile(writeConfig(t, `
regions:
  - id: us-east-1
    active: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one region must be active")
}

func TestRejectsInvalidEndpointURL(t *testing.T) {
	_, err := config.LoadConfigFile(writeConfig(t, `
regions:
  - id: us-east-1
    endpoint: "not a url"
    active: true
`))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MESHAPI_REDIS_URL", "redis://cache.mesh.internal:6379/0")
	t.Setenv("MESHAPI_DB_HOST", "db.mesh.internal")

	cfg, err := config.LoadConfigFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "redis://cache.mesh.internal:6379/0", cfg.Redis.URL)
	assert.Equal(t, "db.mesh.internal", cfg.Database.Host)
}

func TestMissingFile(t *testing.T) {
	_, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
