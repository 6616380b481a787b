// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package server is the local preview server. It serves the built output
// tree, the fragment loader script, a health check and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/metrics"
	"assetforge/internal/middleware"
	"assetforge/web"
)

// FragmentsPath is where the embedded fragment loader script is served.
const FragmentsPath = "/_assetforge/fragments.js"

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 10 * time.Second

// NewRouter creates the chi router serving root. m may be nil, in which case
// /metrics is not mounted.
func NewRouter(root string, m *metrics.Metrics, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// Built assets are previews of work in progress; never let the browser
	// keep a stale copy.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Get(FragmentsPath, fragmentsHandler)
		r.Handle("/*", http.FileServer(http.Dir(root)))
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func fragmentsHandler(w http.ResponseWriter, r *http.Request) {
	data, err := web.StaticFS.ReadFile("static/js/fragments.js")
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(data)
}

// Server wraps an http.Server with context-driven graceful shutdown.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a preview server listening on addr.
func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
