// Package api exposes the decision engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/darthVad3r/SageNet-Sentinel/internal/domain"
	"github.com/darthVad3r/SageNet-Sentinel/internal/orchestrator"
	"github.com/darthVad3r/SageNet-Sentinel/internal/scoring"
	"github.com/darthVad3r/SageNet-Sentinel/internal/velocity"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, orch *orchestrator.Orchestrator, heuristics *scoring.HeuristicProvider, vel *velocity.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, orch, heuristics, vel, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Fraud decision
		r.Post("/decide", handler.Decide)

		// Decision audit retrieval
		r.Get("/decisions/{id}", handler.GetDecision)

		// Transaction retrieval
		r.Get("/transactions/{id}", handler.GetTransaction)

		// Provider introspection
		r.Get("/providers", handler.Providers)

		// Heuristic signal management
		r.Get("/heuristics", handler.ListHeuristics)
		r.Get("/heuristics/{id}", handler.GetHeuristic)
		r.Post("/heuristics", handler.CreateHeuristic)
		r.Post("/heuristics/reload", handler.ReloadHeuristics)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
