package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/fingerbrush/internal/geometry"
)

func TestCanvasHandler_Export(t *testing.T) {
	d := newFakeDrawing(t)
	handler := NewCanvasHandler(d)

	req := httptest.NewRequest(http.MethodGet, "/api/canvas", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected Content-Type image/png, got %s", ct)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("exported size = %dx%d, want 64x48", b.Dx(), b.Dy())
	}
}

func TestCanvasHandler_ExportNotRunning(t *testing.T) {
	d := newFakeDrawing(t)
	d.notRunning = true

	rec := httptest.NewRecorder()
	NewCanvasHandler(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/canvas", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestCanvasHandler_Clear(t *testing.T) {
	d := newFakeDrawing(t)

	rec := httptest.NewRecorder()
	NewCanvasHandler(d).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/canvas", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if d.cleared != 1 {
		t.Errorf("Clear called %d times, want 1", d.cleared)
	}
}

func TestCanvasHandler_Resize(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"width": 320, "height": 200}`, http.StatusOK},
		{"zero width", `{"width": 0, "height": 200}`, http.StatusBadRequest},
		{"oversized", `{"width": 100000, "height": 100000}`, http.StatusBadRequest},
		{"malformed", `{"width":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDrawing(t)
			req := httptest.NewRequest(http.MethodPut, "/api/canvas/size", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			NewCanvasHandler(d).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				return
			}
			var got geometry.Size
			json.NewDecoder(rec.Body).Decode(&got)
			if got != (geometry.Size{Width: 320, Height: 200}) || d.surf.Size() != got {
				t.Errorf("size = %v, surface = %v", got, d.surf.Size())
			}
		})
	}
}

func TestCanvasHandler_MethodNotAllowed(t *testing.T) {
	handler := NewCanvasHandler(newFakeDrawing(t))

	cases := []struct{ method, path string }{
		{http.MethodPost, "/api/canvas"},
		{http.MethodGet, "/api/canvas/size"},
		{http.MethodPost, "/api/overlay"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(c.method, c.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", c.method, c.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
