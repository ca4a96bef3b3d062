package api

import (
	"net/http"

	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
)

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode string `json:"mode"`
}

type colorRequest struct {
	Color string `json:"color"`
}

type colorResponse struct {
	Color   string   `json:"color"`
	Palette []string `json:"palette"`
}

type facingResponse struct {
	Facing string `json:"facing"`
}

// ControlHandler handles input mode, stroke colour, camera and status
// requests.
//
//	GET|PUT /api/mode
//	GET|PUT /api/color
//	POST    /api/camera/flip
//	GET     /api/status
type ControlHandler struct {
	drawing Drawing
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(d Drawing) *ControlHandler {
	return &ControlHandler{drawing: d}
}

// ServeHTTP implements the http.Handler interface.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/mode":
		switch r.Method {
		case http.MethodGet:
			h.getMode(w)
		case http.MethodPut:
			h.setMode(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "/api/color":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, colorResponse{Color: h.drawing.Status().Color, Palette: surface.Palette})
		case http.MethodPut:
			h.setColor(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "/api/camera/flip":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.flip(w)
	case "/api/status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.drawing.Status())
	default:
		http.NotFound(w, r)
	}
}

func (h *ControlHandler) getMode(w http.ResponseWriter) {
	mode, err := h.drawing.Mode()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: mode.String()})
}

func (h *ControlHandler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := stroke.ParseInputMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.drawing.SetMode(mode); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modeResponse{Mode: mode.String()})
}

func (h *ControlHandler) setColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	canonical, err := h.drawing.SetColor(req.Color)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, colorResponse{Color: canonical, Palette: surface.Palette})
}

func (h *ControlHandler) flip(w http.ResponseWriter) {
	facing, err := h.drawing.FlipCamera()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facingResponse{Facing: string(facing)})
}
