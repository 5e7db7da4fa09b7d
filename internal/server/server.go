// Package server is the operator HTTP + WebSocket surface: read-only
// snapshot views, confirmation-gated control commands, live push and
// Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/server/handler"
	"github.com/alanyoungcy/tradeconsole/internal/server/middleware"
	"github.com/alanyoungcy/tradeconsole/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string
	APIKeyHash  string
	// RateLimit is requests per RateWindow per client IP; zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health   *handler.HealthHandler
	Snapshot *handler.SnapshotHandler
	Control  *handler.ControlHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Server is the operator API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging, rate
// limiting and auth, outermost first.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/snapshot", handlers.Snapshot.GetSnapshot)
	mux.HandleFunc("GET /api/performance", handlers.Snapshot.GetPerformance)
	mux.HandleFunc("GET /api/trades", handlers.Snapshot.ListTrades)
	mux.HandleFunc("GET /api/logs", handlers.Snapshot.ListLogs)

	mux.HandleFunc("POST /api/refresh", handlers.Control.Refresh)
	mux.HandleFunc("POST /api/control/start", handlers.Control.Start)
	mux.HandleFunc("POST /api/control/stop", handlers.Control.Stop)
	mux.HandleFunc("POST /api/control/forceexit", handlers.Control.ForceExit)
	mux.HandleFunc("POST /api/control/emergency-stop", handlers.Control.EmergencyStop)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	var h http.Handler = mux
	h = middleware.Auth(middleware.AuthConfig{
		APIKey:      cfg.APIKey,
		APIKeyHash:  cfg.APIKeyHash,
		PublicPaths: []string{"/api/health", "/metrics"},
	})(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
