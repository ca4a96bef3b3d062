package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerbrush/internal/app"
	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/detector"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/server"
	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/stroke"
)

type harness struct {
	ts    *httptest.Server
	app   *app.App
	store *store.Store
	det   *detector.MockDetector
}

func newHarness(t *testing.T, dbPath string, det *detector.MockDetector) *harness {
	t.Helper()

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	a, err := app.New(app.Config{
		Canvas:    geometry.Size{Width: 320, Height: 180},
		Mode:      stroke.Gesture,
		Devices:   capture.Devices{User: 0, Environment: 1},
		Opener:    capture.MockOpener([]*gocv.Mat{&mat}),
		Detector:  det,
		TickFPS:   100,
		IdleFPS:   30,
		ActiveFPS: 60,
		Settings:  s.Settings(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(a.Stop)

	ts := httptest.NewServer(server.New(server.Config{Store: s, App: a}))
	t.Cleanup(ts.Close)

	return &harness{ts: ts, app: a, store: s, det: det}
}

func (h *harness) status(t *testing.T) app.Status {
	t.Helper()
	resp, err := h.ts.Client().Get(h.ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	defer resp.Body.Close()
	var s app.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return s
}

func (h *harness) waitFor(t *testing.T, what string, cond func(app.Status) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond(h.status(t)) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) put(t *testing.T, path, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPut, h.ts.URL+path, strings.NewReader(body))
	resp, err := h.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT %s error = %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func TestE2E_GestureDrawSaveAndRestore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dbPath := filepath.Join(t.TempDir(), "data.db")
	det := detector.NewMockDetector()
	h := newHarness(t, dbPath, det)

	t.Run("DetectorReady", func(t *testing.T) {
		h.waitFor(t, "perception ready", func(s app.Status) bool { return s.Perception == "ready" })
		if s := h.status(t); !s.GestureAvailable || s.Mode != "gesture" {
			t.Fatalf("status = %+v", s)
		}
	})

	t.Run("PinchDraws", func(t *testing.T) {
		if resp := h.put(t, "/api/color", `{"color":"#EF4444"}`); resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT /api/color status = %d", resp.StatusCode)
		}

		h.det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks(0.4, 0.5)})
		h.waitFor(t, "stroke to begin", func(s app.Status) bool { return s.State == "drawing" })

		h.det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks(0.6, 0.5)})
		time.Sleep(100 * time.Millisecond)

		h.det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
		h.waitFor(t, "stroke to end", func(s app.Status) bool { return s.State == "idle" && s.Strokes == 1 })
	})

	var artworkID string
	t.Run("SaveArtwork", func(t *testing.T) {
		resp, err := h.ts.Client().Post(h.ts.URL+"/api/artworks", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/artworks error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var created struct {
			ID string `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&created)
		artworkID = created.ID

		stored, err := h.store.Artworks().GetByID(artworkID)
		if err != nil {
			t.Fatalf("artwork not stored: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(stored.PNG))
		if err != nil {
			t.Fatalf("stored artwork is not a PNG: %v", err)
		}

		// Somewhere along the stroke there must be an opaque red pixel.
		found := false
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y && !found; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, _, a := img.At(x, y).RGBA()
				if a == 0xffff && r > 0xe000 && g < 0x6000 {
					found = true
					break
				}
			}
		}
		if !found {
			t.Error("saved artwork has no red stroke pixels")
		}
	})

	t.Run("SwitchToTouch", func(t *testing.T) {
		if resp := h.put(t, "/api/mode", `{"mode":"touch"}`); resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT /api/mode status = %d", resp.StatusCode)
		}
		if s := h.status(t); s.Mode != "touch" {
			t.Errorf("mode = %s, want touch", s.Mode)
		}
	})

	t.Run("SettingsPersisted", func(t *testing.T) {
		all, err := h.store.Settings().All()
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		if all[app.SettingMode] != "touch" || all[app.SettingColor] != "#ef4444" {
			t.Errorf("settings = %v", all)
		}
		if artworkID == "" {
			t.Skip("no artwork saved")
		}
		if _, err := h.store.Artworks().GetByID(artworkID); err != nil {
			t.Errorf("artwork lost: %v", err)
		}
	})
}

func TestE2E_DetectorFailureKeepsTouch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	det := detector.NewMockDetector()
	det.SetLoadError(errors.New("model missing"))
	h := newHarness(t, filepath.Join(t.TempDir(), "data.db"), det)

	h.waitFor(t, "perception failure", func(s app.Status) bool { return s.Perception == "failed" })
	if s := h.status(t); !strings.Contains(s.PerceptionError, "model missing") {
		t.Errorf("perception_error = %q", s.PerceptionError)
	}

	if resp := h.put(t, "/api/mode", `{"mode":"touch"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/mode status = %d", resp.StatusCode)
	}
	for _, ev := range []stroke.PointerEvent{
		{Type: stroke.PointerDown, X: 10, Y: 10},
		{Type: stroke.PointerMove, X: 100, Y: 90},
		{Type: stroke.PointerUp},
	} {
		if err := h.app.Pointer(ev); err != nil {
			t.Fatalf("Pointer() error = %v", err)
		}
	}
	if s := h.status(t); s.Strokes != 1 {
		t.Errorf("strokes = %d, want 1", s.Strokes)
	}
}
