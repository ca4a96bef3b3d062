package api

import (
	"path/filepath"
	"testing"

	"github.com/ayusman/fingerbrush/internal/app"
	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeDrawing backs the handlers with a real surface and canned app
// behaviour.
type fakeDrawing struct {
	surf       *surface.Surface
	mode       stroke.InputMode
	facing     capture.FacingMode
	noGesture  bool
	notRunning bool
	cleared    int
}

func newFakeDrawing(t *testing.T) *fakeDrawing {
	t.Helper()
	surf, err := surface.New(geometry.Size{Width: 64, Height: 48}, surface.Options{})
	if err != nil {
		t.Fatalf("surface.New() error = %v", err)
	}
	t.Cleanup(func() { surf.Close() })
	return &fakeDrawing{surf: surf, mode: stroke.Gesture, facing: capture.FacingUser}
}

func (f *fakeDrawing) Export() ([]byte, error) {
	if f.notRunning {
		return nil, app.ErrNotRunning
	}
	return f.surf.ExportPNG()
}

func (f *fakeDrawing) OverlayPNG() ([]byte, error) { return f.surf.ExportPNG() }

func (f *fakeDrawing) Clear() error {
	f.cleared++
	f.surf.Clear()
	return nil
}

func (f *fakeDrawing) Resize(size geometry.Size) error { return f.surf.Resize(size) }

func (f *fakeDrawing) Mode() (stroke.InputMode, error) { return f.mode, nil }

func (f *fakeDrawing) SetMode(mode stroke.InputMode) error {
	if mode == stroke.Gesture && f.noGesture {
		return app.ErrGestureUnavailable
	}
	f.mode = mode
	return nil
}

func (f *fakeDrawing) SetColor(hex string) (string, error) {
	if err := f.surf.SetColor(hex); err != nil {
		return "", err
	}
	return f.surf.Color(), nil
}

func (f *fakeDrawing) FlipCamera() (capture.FacingMode, error) {
	f.facing = f.facing.Other()
	return f.facing, nil
}

func (f *fakeDrawing) Status() app.Status {
	return app.Status{
		Running: !f.notRunning,
		Mode:    f.mode.String(),
		State:   stroke.Idle.String(),
		Facing:  string(f.facing),
		Color:   f.surf.Color(),
		Canvas:  f.surf.Size(),
	}
}
