package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"testdeck/internal/pool"
	"testdeck/internal/queue"
	"testdeck/internal/store"
)

// Config holds the HTTP surface configuration.
type Config struct {
	Port           int
	RateLimit      int
	RateLimitBurst int
}

// Server is the HTTP server for the orchestrator API.
type Server struct {
	httpServer *http.Server
}

// New creates the orchestrator HTTP server. metricsHandler serves
// /metrics; pass nil to disable it.
func New(cfg Config, q *queue.Queue, p *pool.Pool, s store.JobStore, log *slog.Logger, metricsHandler http.Handler) *Server {
	h := NewHandlers(q, p, s, log)
	rateMW := RateLimitMiddleware(cfg.RateLimit, cfg.RateLimitBurst)

	mux := http.NewServeMux()

	mux.Handle("POST /jobs", rateMW(http.HandlerFunc(h.SubmitJob)))
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /jobs/{id}/cancel", h.CancelJob)
	mux.HandleFunc("POST /jobs/{id}/retry", h.RetryJob)
	mux.HandleFunc("GET /stats", h.GetStats)
	mux.HandleFunc("GET /groups", h.GetGroups)
	mux.HandleFunc("GET /devices", h.GetDevices)
	mux.HandleFunc("GET /healthz", h.Health)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      RequestIDMiddleware(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
