package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/promptlib")
	t.Setenv("PORT", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("CACHE_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.CacheEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/promptlib")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "15")
	t.Setenv("DEFAULT_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 30, cfg.DefaultRateLimit)
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/promptlib")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "0")

	_, err := Load()
	assert.Error(t, err)
}
