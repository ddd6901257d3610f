// Package main is the entry point for the playground server.
//
// main stays small: read configuration, build the long-lived dependencies
// (logger, executor backend, session registry, metrics), and hand them to
// internal/server. Everything else lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/jsmemes/internal/config"
	"github.com/sakif/jsmemes/internal/executor/docker"
	"github.com/sakif/jsmemes/internal/executor/jsvm"
	"github.com/sakif/jsmemes/internal/metrics"
	"github.com/sakif/jsmemes/internal/middleware"
	"github.com/sakif/jsmemes/internal/server"
	"github.com/sakif/jsmemes/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === LOGGING ===
	level, _ := cfg.Logging.SlogLevel() // validated by Load
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// === DATABASE DIRECTORY ===
	if cfg.Server.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.Server.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	// === EXECUTOR BACKEND ===
	factory, closeBackend, err := newFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	// === SESSIONS ===
	secret := cfg.Session.Secret
	if secret == "" {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
		if secret, err = session.RandomSecret(); err != nil {
			return err
		}
	}
	tokens, err := session.NewTokenService(secret, cfg.Session.TTL)
	if err != nil {
		return err
	}

	registry := session.NewRegistry(factory, session.RegistryConfig{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, logger)
	registry.Start()
	defer registry.Close()

	m := metrics.New()
	m.TrackSessions(registry.Len)

	// === SERVER ===
	srvCfg := server.Config{
		Port:          cfg.Server.Port,
		StaticDir:     cfg.Server.StaticDir,
		DBPath:        cfg.Server.DBPath,
		SecureCookies: cfg.Server.SecureCookies,
		TrustProxy:    cfg.Server.TrustProxy,
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		srvCfg.RateLimit = &rl
	}

	srv, err := server.New(srvCfg, logger, server.Deps{
		Sessions: registry,
		Tokens:   tokens,
		Metrics:  m,
	})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}

// newFactory builds the per-session executor factory for the configured
// backend, plus a func that releases whatever the backend holds.
func newFactory(cfg *config.Config, logger *slog.Logger) (session.Factory, func(), error) {
	switch cfg.Executor.Backend {
	case config.BackendDocker:
		backend, err := docker.New(docker.Config{
			Image:            cfg.Docker.Image,
			MemoryLimit:      cfg.Docker.MemoryMB * 1024 * 1024,
			CPULimit:         cfg.Docker.CPUs,
			Timeout:          cfg.Executor.Timeout,
			MaxDeferredDelay: cfg.Executor.MaxDeferredDelay,
			PoolSize:         cfg.Docker.PoolSize,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("executor backend ready",
			slog.String("backend", config.BackendDocker),
			slog.String("image", cfg.Docker.Image),
		)
		closeFn := func() {
			if err := backend.Close(); err != nil {
				logger.Warn("failed to close docker backend", slog.String("error", err.Error()))
			}
		}
		return func() session.Runner { return backend.NewExecutor() }, closeFn, nil

	default:
		jsCfg := jsvm.Config{
			MaxDeferredDelay: cfg.Executor.MaxDeferredDelay,
			MaxCallStackSize: cfg.Executor.MaxCallStackSize,
			Timeout:          cfg.Executor.Timeout,
		}
		logger.Info("executor backend ready", slog.String("backend", config.BackendJSVM))
		return func() session.Runner { return jsvm.New(jsCfg, logger) }, func() {}, nil
	}
}
