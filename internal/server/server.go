// Package server exposes the settlement API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/web3dona/internal/domain"
	"github.com/alanyoungcy/web3dona/internal/server/handler"
	"github.com/alanyoungcy/web3dona/internal/server/middleware"
	"github.com/alanyoungcy/web3dona/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RateLimit is the per-client request budget for settlement endpoints
	// over RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Settlement *handler.SettlementHandler
	Metrics    http.Handler // optional
}

// Options carries the optional collaborators.
type Options struct {
	Hub      *ws.Hub                 // nil disables /ws
	Limiter  domain.RateLimiter      // nil disables rate limiting
	Recorder middleware.HTTPRecorder // nil disables request metrics
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
func NewServer(cfg Config, handlers Handlers, opts Options, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// Settlement endpoints spend gas or hit the ledger, so they share the
	// rate limit.
	limited := func(h http.HandlerFunc) http.Handler {
		if opts.Limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(opts.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	s := handlers.Settlement
	mux.Handle("POST /donate", limited(s.Donate))
	mux.Handle("POST /update-rate", limited(s.UpdateRate))
	mux.Handle("POST /withdraw", limited(s.Withdraw))
	mux.Handle("POST /wallet", limited(s.Wallet))
	mux.HandleFunc("GET /rate", s.Rate)
	mux.HandleFunc("GET /donations", s.ListDonations)

	if opts.Hub != nil {
		mux.HandleFunc("GET /ws", opts.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if opts.Recorder != nil {
		h = middleware.Metrics(opts.Recorder)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, 60*time.Second),
	}

	return &Server{httpServer: srv, logger: logger}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
