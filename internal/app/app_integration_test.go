package app

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/detector"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"gocv.io/x/gocv"
)

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memSettings) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *memSettings) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func testFrames(t *testing.T) []*gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	return []*gocv.Mat{&mat}
}

func newTestApp(t *testing.T, det detector.Detector, opener capture.Opener, mode stroke.InputMode) (*App, *memSettings) {
	t.Helper()
	settings := &memSettings{}
	a, err := New(Config{
		Canvas:    geometry.Size{Width: 320, Height: 240},
		Mode:      mode,
		Facing:    capture.FacingUser,
		Devices:   capture.Devices{User: 0, Environment: 1, Probe: 0},
		Opener:    opener,
		Detector:  det,
		TickFPS:   200,
		IdleFPS:   50,
		ActiveFPS: 100,
		Settings:  settings,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, settings
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestApp_GestureStroke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks(0.5, 0.5)})

	a, _ := newTestApp(t, det, capture.MockOpener(testFrames(t)), stroke.Gesture)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	waitFor(t, "stroke to begin", func() bool { return a.Status().State == "drawing" })

	det.SetHands(nil)
	waitFor(t, "stroke to end", func() bool { return a.Status().State == "idle" })

	status := a.Status()
	if status.Strokes != 1 {
		t.Errorf("Strokes = %d, want 1", status.Strokes)
	}
	if status.Perception != "ready" || !status.GestureAvailable {
		t.Errorf("Status() = %+v, want ready perception with gesture available", status)
	}
}

func TestApp_CameraFailureFallsBackToTouch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	a, _ := newTestApp(t, det, capture.MockOpener(testFrames(t), 0, 1), stroke.Gesture)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	status := a.Status()
	if status.GestureAvailable {
		t.Error("gesture available without a camera")
	}
	if status.Mode != "touch" {
		t.Errorf("Mode = %s, want touch", status.Mode)
	}
	if err := a.SetMode(stroke.Gesture); !errors.Is(err, ErrGestureUnavailable) {
		t.Errorf("SetMode(Gesture) error = %v, want ErrGestureUnavailable", err)
	}

	blank, _ := a.Export()
	a.Pointer(stroke.PointerEvent{Type: stroke.PointerDown, X: 10, Y: 10})
	a.Pointer(stroke.PointerEvent{Type: stroke.PointerMove, X: 200, Y: 120})
	a.Pointer(stroke.PointerEvent{Type: stroke.PointerUp})

	drawn, err := a.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if bytes.Equal(blank, drawn) {
		t.Error("touch stroke did not reach the surface")
	}
}

func TestApp_FlipCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a, settings := newTestApp(t, detector.NewMockDetector(), capture.MockOpener(testFrames(t)), stroke.Touch)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	facing, err := a.FlipCamera()
	if err != nil {
		t.Fatalf("FlipCamera() error = %v", err)
	}
	if facing != capture.FacingEnvironment {
		t.Errorf("FlipCamera() = %s, want environment", facing)
	}
	if got := settings.Get(SettingFacing); got != "environment" {
		t.Errorf("persisted facing = %q", got)
	}
	if got := a.Status().Facing; got != "environment" {
		t.Errorf("Status().Facing = %s", got)
	}
}

func TestApp_FlipFailureFallsBackToTouch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	frames := testFrames(t)
	var broken atomic.Bool
	opener := func(deviceID int) capture.Camera {
		cam := capture.MockOpener(frames)(deviceID)
		if broken.Load() {
			cam.(*capture.MockCamera).SetOpenError(errors.New("unplugged"))
		}
		return cam
	}

	a, _ := newTestApp(t, detector.NewMockDetector(), opener, stroke.Gesture)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if s := a.Status(); s.Mode != "gesture" || !s.GestureAvailable {
		t.Fatalf("Status() = %+v, want gesture armed", s)
	}

	broken.Store(true)
	if _, err := a.FlipCamera(); err == nil {
		t.Fatal("FlipCamera() error = nil with every device failing")
	}

	s := a.Status()
	if s.GestureAvailable {
		t.Error("gesture still available after the flip failed")
	}
	if s.Mode != "touch" {
		t.Errorf("Mode = %s, want touch", s.Mode)
	}
	if err := a.SetMode(stroke.Gesture); !errors.Is(err, ErrGestureUnavailable) {
		t.Errorf("SetMode(Gesture) error = %v, want ErrGestureUnavailable", err)
	}
}

func TestApp_SettingsPersisted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a, settings := newTestApp(t, detector.NewMockDetector(), capture.MockOpener(testFrames(t)), stroke.Gesture)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if err := a.SetMode(stroke.Touch); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	got, err := a.SetColor("#F0A")
	if err != nil {
		t.Fatalf("SetColor() error = %v", err)
	}
	if got != "#ff00aa" {
		t.Errorf("SetColor() = %s, want #ff00aa", got)
	}
	if _, err := a.SetColor("red"); err == nil {
		t.Error("SetColor(red) error = nil")
	}

	if settings.Get(SettingMode) != "touch" || settings.Get(SettingColor) != "#ff00aa" {
		t.Errorf("persisted settings = %v", settings.values)
	}
}

func TestApp_SubscribeReceivesOverlay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	a, _ := newTestApp(t, det, capture.MockOpener(testFrames(t)), stroke.Gesture)
	ch, cancel := a.Subscribe()
	defer cancel()

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case o := <-ch:
			if len(o.Markers) == 2 {
				a.Stop()
				// At most one overlay is buffered before the close.
				for i := 0; i < 2; i++ {
					if _, ok := <-ch; !ok {
						return
					}
				}
				t.Fatal("subscription not closed after Stop")
			}
		case <-deadline:
			a.Stop()
			t.Fatal("no overlay with fingertip markers received")
		}
	}
}

func TestApp_StopDiscardsInFlightDetection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks(0.5, 0.5)})
	det.Block()

	a, _ := newTestApp(t, det, capture.MockOpener(testFrames(t)), stroke.Gesture)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "detection to start", func() bool { return det.Calls() > 0 })

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop blocked on an in-flight detection")
	}
	det.Release()

	if a.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := a.Clear(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Clear() after Stop error = %v, want ErrNotRunning", err)
	}
	if status := a.Status(); status.Strokes != 0 || status.Running {
		t.Errorf("Status() after Stop = %+v", status)
	}
	if err := a.Start(); err == nil {
		t.Error("restart after Stop succeeded")
	}
}

func TestApp_RequestsBeforeStart(t *testing.T) {
	a, _ := newTestApp(t, detector.NewMockDetector(), capture.MockOpener(nil), stroke.Touch)

	if _, err := a.Export(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Export() error = %v, want ErrNotRunning", err)
	}
	if err := a.Pointer(stroke.PointerEvent{Type: stroke.PointerDown}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Pointer() error = %v, want ErrNotRunning", err)
	}
	if a.Running() {
		t.Error("Running() = true before Start")
	}
	a.Stop()
}
