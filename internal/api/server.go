// Package api exposes the tool dispatcher over HTTP for clients that speak
// plain JSON instead of the MCP stdio protocol.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// Dispatcher executes tool calls on behalf of HTTP clients.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response
}

// ToolCatalog lists the registered tool descriptors.
type ToolCatalog interface {
	All() []*tool.Descriptor
}

// WorkspaceLister reports the known workspace records.
type WorkspaceLister interface {
	Snapshots() []workspace.Info
}

// HistoryReader reads the invocation log. May be absent.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the bearer token protecting every endpoint except /healthz.
	// Empty means the protected routes reject all requests.
	APIKey string
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	dispatcher Dispatcher
	tools      ToolCatalog
	workspaces WorkspaceLister
	history    HistoryReader
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. history may be nil.
func New(config Config, d Dispatcher, tools ToolCatalog, ws WorkspaceLister, hist HistoryReader, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		dispatcher: d,
		tools:      tools,
		workspaces: ws,
		history:    hist,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // decode/build calls block until the subprocess exits
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/tool/{name}", s.handleToolCall)
		r.Get("/tools", s.handleListTools)
		r.Get("/workspaces", s.handleListWorkspaces)
		r.Get("/history", s.handleHistory)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
