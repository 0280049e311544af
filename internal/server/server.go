// Package server exposes the analysis pipeline over HTTP: JSON endpoints,
// an SSE stream, and a websocket stream, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix-go/internal/render"
	"github.com/raphaelgruber/helix-go/internal/service"
)

// Server wires the orchestration service and the renderers into an HTTP
// handler with lifecycle management.
type Server struct {
	version  string
	svc      *service.Service
	renderer *render.Renderer
	diagrams *render.DiagramGenerator
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server. The version string shows up on the root endpoint
// and in stats.
func New(version string, svc *service.Service, renderer *render.Renderer,
	diagrams *render.DiagramGenerator, log *slog.Logger) *Server {

	if log == nil {
		log = slog.Default()
	}
	return &Server{
		version:  version,
		svc:      svc,
		renderer: renderer,
		diagrams: diagrams,
		log:      log,
		upgrader: websocket.Upgrader{
			// The browser frontend may be served from anywhere.
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the full route table wrapped in logging and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleRoot)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /analyze/stream", s.handleAnalyzeStream)
	mux.HandleFunc("GET /analyze/ws", s.handleAnalyzeWS)
	mux.HandleFunc("GET /memory/{session_id}", s.handleMemoryHistory)
	mux.HandleFunc("DELETE /memory/{session_id}", s.handleMemoryClear)
	mux.HandleFunc("GET /memory/{session_id}/patterns", s.handleMemoryPatterns)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("POST /vectorize", s.handleVectorize)
	mux.HandleFunc("GET /vector-search", s.handleVectorSearch)
	mux.HandleFunc("POST /generate-chart", s.handleGenerateChart)
	mux.HandleFunc("POST /generate-diagram", s.handleGenerateDiagram)
	mux.HandleFunc("GET /stats", s.handleStats)

	var handler http.Handler = mux
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(s.log)(handler)
	return handler
}

// Run serves on addr until ctx is cancelled, then drains connections for up
// to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // long for streamed analyses
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("helix server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
