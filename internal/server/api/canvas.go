package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/fingerbrush/internal/geometry"
)

// CanvasHandler serves the drawing raster.
//
//	GET    /api/canvas       PNG export
//	DELETE /api/canvas       clear
//	PUT    /api/canvas/size  {"width":w,"height":h}
//	GET    /api/overlay      feedback layer PNG
type CanvasHandler struct {
	drawing Drawing
}

// NewCanvasHandler creates a new CanvasHandler.
func NewCanvasHandler(d Drawing) *CanvasHandler {
	return &CanvasHandler{drawing: d}
}

// ServeHTTP implements the http.Handler interface.
func (h *CanvasHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/api/canvas":
		switch r.Method {
		case http.MethodGet:
			h.export(w)
		case http.MethodDelete:
			h.clear(w)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "/api/canvas/size":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.resize(w, r)
	case "/api/overlay":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.overlay(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *CanvasHandler) export(w http.ResponseWriter) {
	data, err := h.drawing.Export()
	if err != nil {
		writeErr(w, err)
		return
	}
	writePNG(w, data)
}

func (h *CanvasHandler) overlay(w http.ResponseWriter) {
	data, err := h.drawing.OverlayPNG()
	if err != nil {
		writeErr(w, err)
		return
	}
	writePNG(w, data)
}

func (h *CanvasHandler) clear(w http.ResponseWriter) {
	if err := h.drawing.Clear(); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CanvasHandler) resize(w http.ResponseWriter, r *http.Request) {
	var size geometry.Size
	if !decodeJSON(w, r, &size) {
		return
	}
	if err := h.drawing.Resize(size); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, size)
}
