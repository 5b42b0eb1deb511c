package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "0123456789abcdef")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRequiresLongSessionSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/schoolcup")
	t.Setenv("SESSION_SECRET", "short")

	_, err := Load()
	assert.ErrorContains(t, err, "at least 16")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/schoolcup")
	t.Setenv("SESSION_SECRET", "0123456789abcdef")
	t.Setenv("API_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("TIME_ZONE", "")
	t.Setenv("AUTO_MIGRATE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, int64(2<<20), cfg.PhotoMaxBytes)
	assert.Len(t, cfg.CORSAllowOrigins, 2)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "America/Sao_Paulo", cfg.TimeZone)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/schoolcup")
	t.Setenv("SESSION_SECRET", "0123456789abcdef")
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("STALE_GAME_INTERVAL", "0s")
	t.Setenv("REQUEST_PURGE_INTERVAL", "not-a-duration")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.APIPort)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Zero(t, cfg.StaleGameInterval)
	assert.Equal(t, 24*time.Hour, cfg.RequestPurgeInterval)
	assert.False(t, cfg.AutoMigrate)
}

func TestSportRegistry(t *testing.T) {
	assert.True(t, SportRegistry[SportVolleyball].SetBased)
	assert.True(t, SportRegistry[SportTableTennis].SetBased)
	assert.False(t, SportRegistry[SportFutsal].SetBased)
}
