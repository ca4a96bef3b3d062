package api

import (
	"bytes"
	"image"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// Exporter produces the current drawing as PNG.
type Exporter interface {
	Export() ([]byte, error)
}

type artworkResponse struct {
	ID        string `json:"id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type listArtworksResponse struct {
	Artworks []artworkResponse `json:"artworks"`
}

func toArtworkResponse(a *store.Artwork) artworkResponse {
	return artworkResponse{
		ID:        a.ID,
		Width:     a.Width,
		Height:    a.Height,
		URL:       "/api/artworks/" + a.ID,
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ArtworkHandler saves exported drawings and serves them back.
type ArtworkHandler struct {
	store    *store.Store
	exporter Exporter
}

// NewArtworkHandler creates a new ArtworkHandler.
func NewArtworkHandler(s *store.Store, e Exporter) *ArtworkHandler {
	return &ArtworkHandler{store: s, exporter: e}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ArtworkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/artworks or /api/artworks/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/artworks")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/artworks.
func (h *ArtworkHandler) list(w http.ResponseWriter, r *http.Request) {
	artworks, err := h.store.Artworks().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list artworks")
		return
	}

	response := listArtworksResponse{
		Artworks: make([]artworkResponse, 0, len(artworks)),
	}
	for _, a := range artworks {
		response.Artworks = append(response.Artworks, toArtworkResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/artworks: it exports the canvas and saves it.
func (h *ArtworkHandler) create(w http.ResponseWriter, r *http.Request) {
	data, err := h.exporter.Export()
	if err != nil {
		writeErr(w, err)
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read exported image")
		return
	}

	a := &store.Artwork{Width: cfg.Width, Height: cfg.Height, PNG: data}
	if err := h.store.Artworks().Create(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save artwork")
		return
	}

	w.Header().Set("Location", "/api/artworks/"+a.ID)
	writeJSON(w, http.StatusCreated, toArtworkResponse(a))
}

// get handles GET /api/artworks/{id}[?size=N].
func (h *ArtworkHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Artworks().GetByID(id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Artwork not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get artwork")
		return
	}

	data := a.PNG
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			writeError(w, http.StatusBadRequest, "size must be a positive integer")
			return
		}
		data, err = surface.Thumbnail(a.PNG, size)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create thumbnail")
			return
		}
	}

	writePNG(w, data)
}

// delete handles DELETE /api/artworks/{id}.
func (h *ArtworkHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Artworks().Delete(id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "Artwork not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete artwork")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
