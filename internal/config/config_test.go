package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLITE")
	t.Setenv("DATABASE_CONN_MAX_LIFETIME", "90")
	t.Setenv("DATABASE_SLOW_THRESHOLD", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 90*time.Second, cfg.DBConnMaxLifetime)
	assert.Equal(t, time.Second, cfg.DBSlowThreshold)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.IsProduction())
}

func TestObservabilityDefaultsFollowEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")

	cfg := Load()
	assert.False(t, cfg.Observability.OtelEnabled)
	assert.Equal(t, "http", cfg.Observability.OtelProtocol)
	assert.Equal(t, "development", cfg.Observability.DeploymentEnv)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "grpc")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	cfg = Load()
	assert.True(t, cfg.Observability.OtelEnabled)
	assert.Equal(t, "grpc", cfg.Observability.OtelProtocol)
	assert.Equal(t, 0.5, cfg.Observability.OtelSampleRatio)
}

func TestQueryConfigPageSize(t *testing.T) {
	cfg := DefaultQueryConfig()
	assert.Equal(t, 20, cfg.PageSize(0))
	assert.Equal(t, 5, cfg.PageSize(5))
	assert.Equal(t, 100, cfg.PageSize(500))
}

func TestQueryConfigHolderUsesDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewQueryConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultQueryConfig(), holder.Get())
}

func TestQueryConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := "query:\n  defaultPageSize: 10\n  maxPageSize: 40\n  nearbyRadiusKm: 5\n  nearbyLimit: 25\n  publicRate: 1\n  publicBurst: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query.yml"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewQueryConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, 40, cfg.MaxPageSize)
	assert.Equal(t, 25, cfg.NearbyLimit)
}

func TestQueryConfigHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := "query:\n  defaultPageSize: 200\n  maxPageSize: 100\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query.yml"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = NewQueryConfigHolder(zap.NewNop())
	assert.Error(t, err)
}
