package api

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/store"
)

func createArtwork(t *testing.T, h *ArtworkHandler) artworkResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/artworks", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created artworkResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return created
}

func TestArtworkHandler_Create(t *testing.T) {
	s := newTestStore(t)
	d := newFakeDrawing(t)
	d.surf.BeginStroke(geometry.Point{X: 5, Y: 5})
	d.surf.ContinueStroke(geometry.Point{X: 40, Y: 30})
	d.surf.EndStroke()
	handler := NewArtworkHandler(s, d)

	created := createArtwork(t, handler)

	if created.Width != 64 || created.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", created.Width, created.Height)
	}
	if created.URL != "/api/artworks/"+created.ID {
		t.Errorf("url = %q", created.URL)
	}

	stored, err := s.Artworks().GetByID(created.ID)
	if err != nil {
		t.Fatalf("artwork not stored: %v", err)
	}
	want, _ := d.Export()
	if string(stored.PNG) != string(want) {
		t.Error("stored PNG differs from the export")
	}
}

func TestArtworkHandler_GetAndThumbnail(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworkHandler(s, newFakeDrawing(t))
	created := createArtwork(t, handler)

	tests := []struct {
		name  string
		query string
		code  int
		w, h  int
	}{
		{"full size", "", http.StatusOK, 64, 48},
		{"thumbnail", "?size=32", http.StatusOK, 32, 24},
		{"bad size", "?size=abc", http.StatusBadRequest, 0, 0},
		{"zero size", "?size=0", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/artworks/"+created.ID+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			img, err := png.Decode(rec.Body)
			if err != nil {
				t.Fatalf("response is not a PNG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.w || b.Dy() != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.w, tt.h)
			}
		})
	}
}

func TestArtworkHandler_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworkHandler(s, newFakeDrawing(t))
	first := createArtwork(t, handler)
	createArtwork(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artworks", nil))
	var list listArtworksResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Artworks) != 2 {
		t.Fatalf("expected 2 artworks, got %d", len(list.Artworks))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/artworks/"+first.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := s.Artworks().GetByID(first.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/artworks/"+first.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d deleting twice, got %d", http.StatusNotFound, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artworks/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for a missing artwork, got %d", http.StatusNotFound, rec.Code)
	}
}
