package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dietdesk/planner-core/internal/core/ports/driven"
	"github.com/dietdesk/planner-core/internal/runtime"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	sessions *runtime.Sessions
	verifier driven.TokenVerifier

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	sessions *runtime.Sessions,
	verifier driven.TokenVerifier,
	db Pinger,
	redisClient Pinger, // can be nil
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      logger,
		sessions:    sessions,
		verifier:    verifier,
		db:          db,
		redisClient: redisClient,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.verifier)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// History
	s.router.Handle("GET /api/v1/plans/{id}/history", authed(s.handleGetHistory))
	s.router.Handle("POST /api/v1/plans/{id}/snapshots", authed(s.handleCapture))
	s.router.Handle("POST /api/v1/plans/{id}/undo", authed(s.handleUndo))
	s.router.Handle("POST /api/v1/plans/{id}/redo", authed(s.handleRedo))

	// Clipboard
	s.router.Handle("POST /api/v1/plans/{id}/clipboard/meal", authed(s.handleCopyMeal))
	s.router.Handle("POST /api/v1/plans/{id}/clipboard/meal/paste", authed(s.handlePasteMeal))
	s.router.Handle("POST /api/v1/plans/{id}/clipboard/day", authed(s.handleCopyDay))
	s.router.Handle("POST /api/v1/plans/{id}/clipboard/day/paste", authed(s.handlePasteDay))
	s.router.Handle("DELETE /api/v1/plans/{id}/clipboard", authed(s.handleClearClipboard))

	// Editing
	s.router.Handle("PUT /api/v1/plans/{id}/document", authed(s.handleUpdateDocument))
	s.router.Handle("POST /api/v1/plans/{id}/calculator", authed(s.handleCalculator))
	s.router.Handle("GET /api/v1/plans/{id}/state", authed(s.handleGetState))
	s.router.Handle("DELETE /api/v1/plans/{id}/session", authed(s.handleCloseSession))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
