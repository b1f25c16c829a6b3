// Package api provides the HTTP REST API for the assistant.
//
// Endpoints:
//
//	GET  /health                        → liveness probe
//	GET  /ready                         → readiness probe (database ping)
//	GET  /api/models                    → model catalog
//	POST /api/threads                   → create thread
//	GET  /api/threads/{id}              → load thread
//	POST /api/threads/{id}/chat/stream  → run a turn, SSE chunk stream
//	POST /api/threads/{id}/cancel       → cancel the running turn
//
// The caller's identity arrives in the X-User-ID header and role claims
// in X-User-Roles, both set by the authenticating proxy in front of this
// service.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery, CORS)
//   - ratelimit.go: per-IP token bucket rate limiting
//   - health.go: health check endpoints
//   - thread.go: thread management endpoints
//   - chat.go: turn streaming endpoint (SSE)
//   - sse.go: Server-Sent Events writer
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/assistant/internal/config"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because turn streams stay open while the
	// vendor generates.
	WriteTimeout = 10 * time.Minute

	// IdleTimeout is the keep-alive window between requests.
	IdleTimeout = 120 * time.Second
)

// Pinger is the readiness dependency, satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the assistant REST API.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger

	limiter *rateLimiter

	health  *HealthHandler
	threads *ThreadHandler
	chat    *ChatHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(svc *thread.Service, registry *model.Registry, db Pinger, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		cfg:     cfg,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		health:  NewHealthHandler(db),
		threads: NewThreadHandler(svc, registry, logger),
		chat:    NewChatHandler(svc, cfg.SystemPrompt, logger),
	}

	s.health.RegisterRoutes(mux)
	s.threads.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request ID → logging → CORS → rate limit
// → handler. Request ID precedes logging so request_id is available in
// log attributes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(),
		loggingMiddleware(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		rateLimitMiddleware(s.limiter, s.cfg.TrustProxy, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
