// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/admin.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Sport registry: default scoring rules per sport
// --------------------------------------------------------------------------

// Sport identifiers stored in modalities.sport.
const (
	SportVolleyball  = "volleyball"
	SportFutsal      = "futsal"
	SportTableTennis = "table_tennis"
)

type SportConfig struct {
	ID   string
	Name string
	// SetBased sports are scored with the set engine; the rest by events.
	SetBased bool
}

var SportRegistry = map[string]SportConfig{
	SportVolleyball:  {ID: SportVolleyball, Name: "Volleyball", SetBased: true},
	SportFutsal:      {ID: SportFutsal, Name: "Futsal", SetBased: false},
	SportTableTennis: {ID: SportTableTennis, Name: "Table tennis", SetBased: true},
}

// --------------------------------------------------------------------------
// Table names: single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	GamesTable              = "games"
	TeamsTable              = "teams"
	PlayersTable            = "players"
	ModalitiesTable         = "modalities"
	GameEventsTable         = "game_events"
	GameSetsTable           = "game_sets"
	GameConfigsTable        = "game_configs"
	TeamRequestsTable       = "team_requests"
	PlayerRequestsTable     = "player_requests"
	RegistrationConfigTable = "inscricoes_config"
)

// --------------------------------------------------------------------------
// Config struct: populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool
	StaticDir   string
	TimeZone    string // calendar days are cut in this zone
	AutoMigrate bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Player photos
	PhotoMaxBytes int64

	// Maintenance
	RegistrationSweepInterval time.Duration
	RequestPurgeInterval      time.Duration
	StaleGameInterval         time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	secret := envOr("SESSION_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set")
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),
		StaticDir:   envOr("STATIC_DIR", "./web"),
		TimeZone:    envOr("TIME_ZONE", "America/Sao_Paulo"),
		AutoMigrate: envBool("AUTO_MIGRATE", true),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 300),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SessionSecret: secret,
		SessionTTL:    time.Duration(envInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		CookieSecure:  envBool("COOKIE_SECURE", false),

		PhotoMaxBytes: int64(envInt("PHOTO_MAX_BYTES", 2<<20)),

		RegistrationSweepInterval: envDuration("REGISTRATION_SWEEP_INTERVAL", 5*time.Minute),
		RequestPurgeInterval:      envDuration("REQUEST_PURGE_INTERVAL", 24*time.Hour),
		StaleGameInterval:         envDuration("STALE_GAME_INTERVAL", 30*time.Minute),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// LoadDatabaseOnly reads just the database settings. Used by CLI commands
// that never issue sessions.
func LoadDatabaseOnly() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: 1,
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "5m"). Zero disables the
// corresponding ticker.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
