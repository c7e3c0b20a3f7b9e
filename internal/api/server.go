package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handler "github.com/newthinker/trailsim/internal/api/handler/api"
	"github.com/newthinker/trailsim/internal/api/job"
	"github.com/newthinker/trailsim/internal/api/middleware"
	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/export"
	"github.com/newthinker/trailsim/internal/metrics"
	"github.com/newthinker/trailsim/internal/notifier"
	"github.com/newthinker/trailsim/internal/simulator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/health"

// Server represents the HTTP server for the simulation API
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	root       http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string // Empty disables the metrics endpoint
}

// Dependencies are the services the routes are wired to
type Dependencies struct {
	Runner    handler.Runner
	Collector collector.Collector
	Exporter  *export.Exporter // Optional; without it results are rendered on request only
	Jobs      *job.Store
	Metrics   *metrics.Registry  // Optional
	Notifiers *notifier.Registry // Optional
	Defaults  simulator.Params
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Runner == nil || deps.Collector == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("runner, collector and job store are required")
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	// Outermost first: logging, metrics, then auth.
	var h http.Handler = middleware.APIKeyAuth(cfg.APIKey, healthPath, cfg.MetricsPath)(mux)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)
	s.root = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	var gauge handler.JobGauge
	if deps.Metrics != nil {
		gauge = deps.Metrics
	}
	sims := handler.NewSimulationsHandler(deps.Jobs, deps.Runner, deps.Exporter, deps.Defaults, gauge, s.logger)
	if deps.Notifiers != nil {
		sims.WithAnnouncer(deps.Notifiers)
	}
	symbols := handler.NewSymbolsHandler(deps.Collector)

	s.mux.HandleFunc("POST /api/v1/simulations", sims.Create)
	s.mux.HandleFunc("GET /api/v1/simulations", sims.List)
	s.mux.HandleFunc("GET /api/v1/simulations/{id}", sims.Get)
	s.mux.HandleFunc("GET /api/v1/simulations/{id}/records", sims.Records)
	s.mux.HandleFunc("GET /api/v1/simulations/{id}/export/{format}", sims.Export)
	s.mux.HandleFunc("GET /api/v1/symbols/{symbol}/validate", symbols.Validate)
	s.mux.HandleFunc("GET "+healthPath, s.handleHealth)

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.root
}

// Addr is the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
