// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Executor backends.
const (
	BackendJSVM   = "jsvm"
	BackendDocker = "docker"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Session   SessionConfig
	Executor  ExecutorConfig
	Docker    DockerConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port      int    `envconfig:"PORT" default:"8080"`
	StaticDir string `envconfig:"STATIC_DIR" default:"public"`
	DBPath    string `envconfig:"DB_PATH" default:"data/playground.db"`
	// SecureCookies marks the session cookie Secure; enable behind HTTPS.
	SecureCookies bool `envconfig:"SECURE_COOKIES" default:"false"`
	// TrustProxy reads the client address from forwarding headers. Leave it
	// off unless a reverse proxy in front sets them.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// SessionConfig controls playground sessions.
type SessionConfig struct {
	// Secret signs session tokens. When empty a random one is generated at
	// startup, so sessions don't survive a restart.
	Secret      string        `envconfig:"SESSION_SECRET"`
	TTL         time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	IdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	MaxSessions int           `envconfig:"SESSION_MAX" default:"1000"`
}

// ExecutorConfig selects and tunes the snippet backend.
type ExecutorConfig struct {
	Backend          string        `envconfig:"EXECUTOR_BACKEND" default:"jsvm"`
	Timeout          time.Duration `envconfig:"EXECUTOR_TIMEOUT" default:"10s"`
	MaxDeferredDelay time.Duration `envconfig:"EXECUTOR_MAX_DELAY" default:"5s"`
	MaxCallStackSize int           `envconfig:"EXECUTOR_MAX_CALL_STACK" default:"1024"`
}

// DockerConfig applies when Executor.Backend is "docker".
type DockerConfig struct {
	Image    string  `envconfig:"DOCKER_IMAGE" default:"node:22-alpine"`
	PoolSize int     `envconfig:"DOCKER_POOL_SIZE" default:"3"`
	MemoryMB int64   `envconfig:"DOCKER_MEMORY_MB" default:"128"`
	CPUs     float64 `envconfig:"DOCKER_CPUS" default:"0.5"`
}

// RateLimitConfig holds per-client rate limiting for the execution routes.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
	Enabled           bool    `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Server.Port)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	c.Executor.Backend = strings.ToLower(strings.TrimSpace(c.Executor.Backend))
	switch c.Executor.Backend {
	case BackendJSVM, BackendDocker:
	default:
		return fmt.Errorf("config: EXECUTOR_BACKEND must be %q or %q, got %q",
			BackendJSVM, BackendDocker, c.Executor.Backend)
	}
	if c.Executor.Timeout < 0 {
		return fmt.Errorf("config: EXECUTOR_TIMEOUT must not be negative")
	}

	if c.Session.Secret != "" && len(c.Session.Secret) < 16 {
		return fmt.Errorf("config: SESSION_SECRET must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return level, nil
}
