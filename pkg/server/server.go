package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/autoshots/core/internal/config"
	"github.com/autoshots/core/pkg/handlers/health"
	"github.com/autoshots/core/pkg/handlers/jobs"
	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/middleware"
)

// Dependencies are built by the caller so the server owns no connections
type Dependencies struct {
	Registry jobs.Registry
	Launcher jobs.Launcher
	Runs     health.RunLister
	// DBStats is optional and reported on /health
	DBStats func() interface{}
}

// Server represents the front end HTTP server
type Server struct {
	router   *http.ServeMux
	http     *http.Server
	addr     string
	logger   *logger.Logger
	handlers struct {
		health *health.Handler
		jobs   *jobs.Handler
	}
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	server := &Server{
		router: http.NewServeMux(),
		addr:   net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		logger: log,
	}

	server.handlers.health = health.NewHandler(deps.Runs, deps.DBStats, log)
	server.handlers.jobs = jobs.NewHandler(deps.Registry, deps.Launcher, cfg.Remote.BaseURL, cfg.CallbackURL(), log)

	server.setupRoutes()

	server.http = &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RequestID(s.logger, middleware.CORS(h))
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.wrap(s.handlers.health.HealthCheck))

	// Listing
	s.router.HandleFunc("/", s.wrap(s.handlers.jobs.List))
	s.router.HandleFunc("/api/jobs", s.wrap(s.handlers.jobs.List))

	// Submission and completion callback
	s.router.HandleFunc("/add", s.wrap(s.handlers.jobs.Add))
	s.router.HandleFunc("/done", s.wrap(s.handlers.jobs.Done))
}

// Handler exposes the routed handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("addr", s.addr).
		Msg("Starting HTTP server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on %s: %w", s.addr, err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Str("action", "server_shutdown").Msg("Shutting down HTTP server")
	return s.http.Shutdown(ctx)
}
