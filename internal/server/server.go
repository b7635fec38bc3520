// Package server exposes a read-only HTTP view of a tracking run: job
// records, quota, and recent notifications. It exists for dashboards and
// scripted checks; all mutations go through the CLI.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/inscribe-ai/docwatch/internal/errors"
	"github.com/inscribe-ai/docwatch/internal/observability"
	"github.com/inscribe-ai/docwatch/internal/server/handlers"
	"github.com/inscribe-ai/docwatch/internal/server/middleware"
)

// Server is the observation HTTP server.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
}

// New builds a Server bound to host:port serving the given dependencies.
func New(host string, port int, deps handlers.Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimw.RealIP)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
			"no such endpoint", middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			"method not allowed", middleware.GetRequestID(req.Context()))
	})

	r.Get("/healthz", handlers.Health)
	r.Get("/version", handlers.Version)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", deps.Jobs)
		r.Get("/jobs/{jobID}", deps.Job)
		r.Get("/quota", deps.QuotaStatus)
		r.Get("/events", deps.EventsTail)
	})

	return &Server{
		host:   host,
		port:   port,
		router: r,
	}
}

// Handler returns the root handler, usable directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Start serves until ctx is canceled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Start(ctx context.Context, readTimeout, writeTimeout, idleTimeout, shutdownTimeout time.Duration) error {
	s.http = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("Observation server listening", zap.String("addr", s.Addr()))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
