// Package server implements the testgate HTTP API server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/testgate/internal/registry"
	"github.com/dwsmith1983/testgate/internal/server/handlers"
	"github.com/dwsmith1983/testgate/internal/store"
)

// DefaultMaxRequestBody caps request bodies when no limit is configured.
const DefaultMaxRequestBody int64 = 1 << 20

// ErrShutdown is the cancellation cause of runs still in progress when the
// server stops.
var ErrShutdown = errors.New("server shutting down")

// Config holds the server's listener settings.
type Config struct {
	Addr           string
	APIKey         string
	MaxRequestBody int64
}

// Server is the testgate HTTP API server.
type Server struct {
	handlers *handlers.Handlers
	registry *registry.Registry
	router   chi.Router
	addr     string
	logger   *slog.Logger
	srv      *http.Server
}

// New creates a new HTTP server. Runs submitted through the API are keyed in
// reg, so a newer run for the same workflow and subject cancels the older.
func New(cfg Config, g handlers.Gate, st store.Store, reg *registry.Registry, project handlers.Project, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxRequestBody
	if maxBody <= 0 {
		maxBody = DefaultMaxRequestBody
	}

	h := handlers.New(g, st, reg, project)
	h.SetLogger(logger)

	s := &Server{
		handlers: h,
		registry: reg,
		addr:     cfg.Addr,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(APIKeyMiddleware(cfg.APIKey))
	r.Use(MaxBodyMiddleware(maxBody))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("testgate server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting requests, cancels runs in progress and waits for them
// to record their outcome.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.registry.CancelAll(ErrShutdown)

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}
