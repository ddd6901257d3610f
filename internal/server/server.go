// Package server wires handlers, middleware, and routes, and runs the HTTP
// server until it is told to stop.
//
// DEPENDENCY FLOW:
//
//	main.go builds:  config → session registry (one executor per session),
//	                 token service, metrics
//	Server.New adds: sqlite.DB → services → handlers → routes
//
// Every dependency is assembled here or in main, never inside a handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/jsmemes/internal/examples"
	"github.com/sakif/jsmemes/internal/handler"
	"github.com/sakif/jsmemes/internal/metrics"
	"github.com/sakif/jsmemes/internal/middleware"
	sqliteRepo "github.com/sakif/jsmemes/internal/repository/sqlite"
	"github.com/sakif/jsmemes/internal/service"
	"github.com/sakif/jsmemes/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port          int
	StaticDir     string
	DBPath        string
	SecureCookies bool
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers; otherwise
	// any client can pick its own rate limit bucket.
	TrustProxy bool
	// RateLimit throttles the execution routes per client IP. Nil disables it.
	RateLimit *middleware.RateLimitConfig
}

// Deps are the long-lived objects main creates and owns.
type Deps struct {
	Sessions *session.Registry
	Tokens   *session.TokenService
	Metrics  *metrics.Metrics
}

// Server represents the HTTP server and all its dependencies.
// It owns the database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	deps    Deps
	limiter *middleware.RateLimiter
}

// New opens the database and builds the router.
func New(cfg Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Sessions == nil || deps.Tokens == nil || deps.Metrics == nil {
		return nil, fmt.Errorf("server: sessions, tokens and metrics are required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		deps:   deps,
	}
	if cfg.RateLimit != nil {
		s.limiter = middleware.NewRateLimiter(*cfg.RateLimit)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET    /                         → playground page
//	GET    /static/*                 → static files
//	GET    /metrics                  → Prometheus exposition
//	POST   /api/execute              → run code in the session's executor  (rate limited)
//	GET    /api/execute/history      → session event log
//	DELETE /api/execute/history      → clear it
//	GET    /api/executions           → persisted runs for the session
//	GET    /api/examples[/{key}]     → built-in examples
//	GET    /api/snippets[/{id}]      → saved snippets
//	POST   /api/snippets             → create
//	PUT    /api/snippets/{id}        → update
//	DELETE /api/snippets/{id}        → delete
//	POST   /api/snippets/{id}/run    → run a saved snippet                 (rate limited)
//
// Middleware runs in the order added: request ID, real IP (only with
// TrustProxy), panic recovery, logging, metrics. Session handling is applied
// to the page and the API but not to /metrics or static files.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Instrument(s.deps.Metrics))

	if info, err := os.Stat(s.config.StaticDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	} else {
		s.logger.Info("static directory not found, /static disabled", slog.String("dir", s.config.StaticDir))
	}

	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	catalog, err := examples.Load()
	if err != nil {
		return fmt.Errorf("loading examples: %w", err)
	}
	playgroundHandler, err := handler.NewPlaygroundHandler(catalog, s.logger)
	if err != nil {
		return fmt.Errorf("creating playground handler: %w", err)
	}

	// s.db implements both repository.SnippetRepository and
	// repository.RunRepository; the services only see the interfaces.
	snippetService := service.NewSnippetService(s.db, s.logger)
	executionService := service.NewExecutionService(s.deps.Sessions, s.db, s.db, s.deps.Metrics, s.logger)

	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	executeHandler := handler.NewExecuteHandler(executionService, s.logger)
	examplesHandler := handler.NewExamplesHandler(catalog)

	limited := func(h http.HandlerFunc) http.Handler {
		if s.limiter == nil {
			return h
		}
		return s.limiter.Middleware(h)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(session.Ensure(s.deps.Tokens, s.config.SecureCookies, s.logger))

		r.Get("/", playgroundHandler.HandlePlayground)

		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodPost, "/execute", limited(executeHandler.HandleExecute))
			r.Get("/execute/history", executeHandler.HandleHistory)
			r.Delete("/execute/history", executeHandler.HandleClearHistory)
			r.Get("/executions", executeHandler.HandleListRuns)

			r.Get("/examples", examplesHandler.HandleList)
			r.Get("/examples/{key}", examplesHandler.HandleGet)

			r.Get("/snippets", snippetHandler.HandleList)
			r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Method(http.MethodPost, "/snippets/{id}/run", limited(executeHandler.HandleRunSnippet))
		})
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the database. Closing the session registry is left to the caller
// that created it.
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.limiter != nil {
		go s.limiter.PruneEvery(ctx, time.Minute)
	}

	// WriteTimeout leaves room for a run that uses its whole time budget.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database without starting the server. Used by tests.
func (s *Server) Close() error {
	return s.db.Close()
}
