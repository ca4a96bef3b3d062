// Package api provides the HTTP API handlers for the drawing canvas.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/fingerbrush/internal/app"
	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// Drawing is the part of the app the handlers control.
type Drawing interface {
	Export() ([]byte, error)
	OverlayPNG() ([]byte, error)
	Clear() error
	Resize(size geometry.Size) error
	Mode() (stroke.InputMode, error)
	SetMode(mode stroke.InputMode) error
	SetColor(hex string) (string, error)
	FlipCamera() (capture.FacingMode, error)
	Status() app.Status
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writePNG writes PNG bytes.
func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, surface.ErrInvalidColor), errors.Is(err, surface.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrGestureUnavailable):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotRunning), errors.Is(err, capture.ErrNoCamera):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
