// Package server provides the HTTP server for the drawing canvas.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/feedback"
	"github.com/ayusman/fingerbrush/internal/server/api"
	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/stroke"
)

// Backend is the drawing app as seen by the server.
type Backend interface {
	api.Drawing
	Pointer(ev stroke.PointerEvent) error
	Subscribe() (<-chan feedback.Overlay, func())
	Snapshot() (*capture.Frame, bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       Backend
	Logger    *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	logger *slog.Logger
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		canvas := api.NewCanvasHandler(s.config.App)
		s.mux.Handle("/api/canvas", canvas)
		s.mux.Handle("/api/canvas/", canvas)
		s.mux.Handle("/api/overlay", canvas)

		controls := api.NewControlHandler(s.config.App)
		s.mux.Handle("/api/mode", controls)
		s.mux.Handle("/api/color", controls)
		s.mux.Handle("/api/camera/flip", controls)
		s.mux.Handle("/api/status", controls)

		s.mux.Handle("/api/pointer", NewPointerHandler(s.config.App, s.logger))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
	}

	// Artworks need both the store and something to export
	if s.config.Store != nil && s.config.App != nil {
		artworks := api.NewArtworkHandler(s.config.Store, s.config.App)
		s.mux.Handle("/api/artworks", artworks)
		s.mux.Handle("/api/artworks/", artworks)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
