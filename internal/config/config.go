// Package config loads server settings from STORYGRAPH_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "STORYGRAPH"

// Backend names accepted in STORYGRAPH_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the settings shared by serve, mcp and migrate.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Backend selects where progress and stats live. Story graphs come from
	// StoriesDir for memory and redis, and from the database for postgres.
	Backend    string `envconfig:"BACKEND" default:"memory"`
	StoriesDir string `envconfig:"STORIES_DIR"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"storygraph:"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"30s"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required for the postgres backend", Prefix)
		}
	default:
		return fmt.Errorf("unknown backend %q (want memory, redis or postgres)", c.Backend)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q (want json or text)", c.LogFormat)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%s_LOCK_TTL must be positive, got %s", Prefix, c.LockTTL)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("%s_DB_MAX_CONNS must be positive, got %d", Prefix, c.DBMaxConns)
	}
	return nil
}

// LogValue implements slog.LogValuer, masking secrets.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("port", c.Port),
		slog.String("log_level", c.LogLevel),
		slog.String("backend", c.Backend),
		slog.String("stories_dir", c.StoriesDir),
		slog.String("redis_addr", c.RedisAddr),
		slog.String("database_url", redactURL(c.DatabaseURL)),
		slog.Int("db_max_conns", int(c.DBMaxConns)),
		slog.Duration("lock_ttl", c.LockTTL),
	)
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid]"
	}
	return u.Redacted()
}
