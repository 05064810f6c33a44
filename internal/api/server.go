package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/freight-reconcile/internal/api/handlers"
	"github.com/eshaffer321/freight-reconcile/internal/api/middleware"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
	JWTSecret      string        // empty disables authentication
	RequestTimeout time.Duration // per reconciliation request
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
		RequestTimeout: 30 * time.Second,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	matcher    *matcher.Matcher
}

// NewServer creates a new API server.
// If m is nil, a matcher with default settings is built on repo.
func NewServer(cfg Config, repo storage.Repository, m *matcher.Matcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = matcher.NewMatcher(matcher.DefaultConfig(), repo, logger)
	}

	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		repo:    repo,
		matcher: m,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.repo, s.logger)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Statement reconciliation
		reconHandler := handlers.NewReconciliationHandler(s.repo, s.matcher, s.config.RequestTimeout, s.logger)
		r.Route("/conciliacao", func(r chi.Router) {
			if s.config.JWTSecret != "" {
				r.Use(middleware.RequirePermission([]byte(s.config.JWTSecret), middleware.PermissionReconcile))
			} else {
				s.logger.Warn("JWT secret not configured, API endpoints are unauthenticated")
			}
			r.Post("/extrato", reconHandler.ProcessStatement)
			r.Post("/extrato/export", reconHandler.ExportStatement)
			r.Post("/confirmar-match", reconHandler.ConfirmMatch)
			r.Get("/log", reconHandler.ListMatchLog)
		})

		// Obligations; creation checks the kind's create permission
		obligationsHandler := handlers.NewObligationsHandler(s.repo)
		r.Route("/obligations", func(r chi.Router) {
			if s.config.JWTSecret != "" {
				r.Use(middleware.Authenticate([]byte(s.config.JWTSecret)))
			}
			r.Get("/", obligationsHandler.List)
			r.Post("/", obligationsHandler.Create)
			r.Get("/{kind}/{id}", obligationsHandler.Get)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	// WriteTimeout must exceed RequestTimeout
	writeTimeout := 15 * time.Second
	if s.config.RequestTimeout+5*time.Second > writeTimeout {
		writeTimeout = s.config.RequestTimeout + 5*time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
