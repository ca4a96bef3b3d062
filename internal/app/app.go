// Package app runs the drawing pipeline: it owns the camera, paces
// capture, schedules detections and serializes every input onto a
// single goroutine.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/detector"
	"github.com/ayusman/fingerbrush/internal/feedback"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/perception"
	"github.com/ayusman/fingerbrush/internal/stroke"
)

// Pipeline timing defaults.
const (
	// TickFPS is how often the owner loop considers a new detection.
	TickFPS = 30
	// IdleFPS is the capture rate when nothing moves.
	IdleFPS = 5
	// ActiveFPS is the capture rate while the scene or hand is moving.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// Setting keys persisted through Settings.
const (
	SettingMode   = "input_mode"
	SettingColor  = "stroke_color"
	SettingFacing = "facing_mode"
)

var (
	// ErrNotRunning is returned by requests made before Start or after Stop.
	ErrNotRunning = errors.New("app is not running")
	// ErrGestureUnavailable is returned when gesture mode is requested
	// without a working camera.
	ErrGestureUnavailable = errors.New("gesture input unavailable")
)

// Settings persists user choices.
type Settings interface {
	Set(key, value string) error
}

// Config holds configuration options for the application.
type Config struct {
	Logger *slog.Logger

	Canvas         geometry.Size
	StrokeColor    string
	LineWidth      float64
	PinchThreshold float64
	Smoothing      float64
	Mode           stroke.InputMode
	Facing         capture.FacingMode

	Devices      capture.Devices
	CameraWidth  int
	CameraHeight int
	// Opener creates cameras; nil uses OpenCV devices.
	Opener capture.Opener
	// Detector is the hand detector; nil uses the MediaPipe subprocess.
	Detector detector.Detector

	TickFPS         int
	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	MotionThreshold float64

	Settings Settings
}

// Status is a snapshot of the app state.
type Status struct {
	Running          bool          `json:"running"`
	Mode             string        `json:"mode"`
	State            string        `json:"state"`
	Perception       string        `json:"perception"`
	PerceptionError  string        `json:"perception_error,omitempty"`
	GestureAvailable bool          `json:"gesture_available"`
	Facing           string        `json:"facing"`
	Color            string        `json:"color"`
	LineWidth        float64       `json:"line_width"`
	Canvas           geometry.Size `json:"canvas"`
	Strokes          int           `json:"strokes"`
	CaptureFPS       int           `json:"capture_fps"`
}

type request struct {
	fn   func(p *Pipeline) error
	done chan error
}

// App is the main application that wires camera, detector and drawing
// pipeline together.
type App struct {
	config   Config
	logger   *slog.Logger
	adapter  *perception.Adapter
	pipeline *Pipeline
	motion   *capture.MotionDetector
	pacer    *capture.Pacer
	slot     capture.FrameSlot

	requests chan request
	results  chan DetectionResult

	hand    atomic.Bool
	stopped atomic.Bool

	mu        sync.Mutex
	stopCh    chan struct{}
	ownerDone chan struct{}
	loadStop  context.CancelFunc

	camMu       sync.Mutex
	camera      capture.Camera
	captureStop chan struct{}
	captureDone chan struct{}

	subMu sync.Mutex
	subs  map[chan feedback.Overlay]struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.TickFPS <= 0 {
		config.TickFPS = TickFPS
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	if config.MotionThreshold <= 0 {
		config.MotionThreshold = 1.0 // 1% pixel change
	}
	if config.Facing == "" {
		config.Facing = capture.FacingUser
	}
	if config.Opener == nil {
		w, h := config.CameraWidth, config.CameraHeight
		config.Opener = func(id int) capture.Camera { return capture.NewCamera(id, w, h) }
	}

	det := config.Detector
	if det == nil {
		mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
		if err != nil {
			config.Logger.Warn("hand detector unavailable", "error", err)
			det = detector.Unavailable(err)
		} else {
			det = mp
		}
	}

	p, err := NewPipeline(PipelineConfig{
		Logger:         config.Logger,
		Canvas:         config.Canvas,
		StrokeColor:    config.StrokeColor,
		LineWidth:      config.LineWidth,
		PinchThreshold: config.PinchThreshold,
		Smoothing:      config.Smoothing,
		Mode:           config.Mode,
		Facing:         config.Facing,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		config:   config,
		logger:   config.Logger,
		adapter:  perception.NewAdapter(det, config.Logger),
		pipeline: p,
		motion:   capture.NewMotionDetector(config.MotionThreshold),
		pacer:    capture.NewPacer(config.IdleFPS, config.ActiveFPS, config.IdleTimeout),
		requests: make(chan request),
		results:  make(chan DetectionResult, 1),
		subs:     make(map[chan feedback.Overlay]struct{}),
	}, nil
}

// Start opens the camera, begins loading the detector and starts the
// pipeline. A camera failure leaves touch drawing available.
func (a *App) Start() error {
	a.mu.Lock()
	if a.stopCh != nil {
		a.mu.Unlock()
		return nil
	}
	if a.ownerDone != nil {
		a.mu.Unlock()
		return fmt.Errorf("app cannot be restarted: %w", ErrNotRunning)
	}

	stop := make(chan struct{})
	a.stopCh = stop
	a.ownerDone = make(chan struct{})
	go a.run(stop, a.ownerDone)

	ctx, cancel := context.WithCancel(context.Background())
	a.loadStop = cancel
	a.mu.Unlock()

	go func() {
		// Failures are recorded in the adapter status.
		_ = a.adapter.Load(ctx)
	}()

	facing, err := a.openCamera(a.config.Facing)
	if err != nil {
		a.logger.Warn("camera unavailable, gesture input disabled", "error", err)
		a.send(stop, func(p *Pipeline) error {
			p.DisableGesture()
			return nil
		})
	} else {
		a.send(stop, func(p *Pipeline) error {
			p.SetFacing(facing)
			return nil
		})
	}

	a.logger.Info("pipeline started", "mode", a.pipelineMode(), "canvas", a.config.Canvas)
	return nil
}

// Stop halts the pipeline and releases the camera and detector. Any
// detection still running is abandoned and its result dropped.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}

	a.stopped.Store(true)
	close(a.stopCh)
	<-a.ownerDone
	a.stopCh = nil
	a.loadStop()

	a.camMu.Lock()
	a.stopCapture()
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("close camera", "error", err)
		}
		a.camera = nil
	}
	a.camMu.Unlock()

	a.slot.Clear()
	a.motion.Close()

	if err := a.adapter.Close(); err != nil {
		a.logger.Warn("close detector", "error", err)
	}

	a.subMu.Lock()
	for ch := range a.subs {
		close(ch)
		delete(a.subs, ch)
	}
	a.subMu.Unlock()

	a.logger.Info("pipeline stopped")
}

// Running reports whether the pipeline is running.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// run is the owner loop. Everything that touches the pipeline happens
// here, one event at a time.
func (a *App) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.TickFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			a.pipeline.Teardown()
			return
		case req := <-a.requests:
			req.done <- req.fn(a.pipeline)
			a.publish()
		case res := <-a.results:
			if a.pipeline.HandleDetection(res) {
				a.hand.Store(a.pipeline.Reading().Present)
				a.publish()
			}
		case <-ticker.C:
			a.tick(stop)
		}
	}
}

// tick issues a detection when the pipeline wants one, the detector is
// ready and there is a frame to look at.
func (a *App) tick(stop <-chan struct{}) {
	if !a.pipeline.WantDetection() || !a.adapter.Ready() {
		return
	}
	frame, ok := a.slot.Snapshot()
	if !ok {
		return
	}

	gen := a.pipeline.BeginDetection()
	go func() {
		defer frame.Close()
		lf, updated, err := a.adapter.Submit(frame.Mat, frame.Timestamp)
		res := DetectionResult{
			Generation: gen,
			Frame:      lf,
			Updated:    updated,
			Source:     frame.Size(),
			Err:        err,
		}
		select {
		case a.results <- res:
		case <-stop:
		}
	}()
}

// do runs fn on the owner goroutine and waits for it.
func (a *App) do(fn func(p *Pipeline) error) error {
	a.mu.Lock()
	stop := a.stopCh
	a.mu.Unlock()
	if stop == nil {
		return ErrNotRunning
	}
	return a.send(stop, fn)
}

func (a *App) send(stop <-chan struct{}, fn func(p *Pipeline) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case a.requests <- req:
	case <-stop:
		return ErrNotRunning
	}
	return <-req.done
}

// Pointer delivers a pointer event from the touch path.
func (a *App) Pointer(ev stroke.PointerEvent) error {
	return a.do(func(p *Pipeline) error { return p.Pointer(ev) })
}

// SetMode arms an input mode.
func (a *App) SetMode(mode stroke.InputMode) error {
	err := a.do(func(p *Pipeline) error {
		if mode == stroke.Gesture && !p.GestureAvailable() {
			return ErrGestureUnavailable
		}
		p.SetMode(mode)
		return nil
	})
	if err != nil {
		return err
	}
	a.persist(SettingMode, mode.String())
	return nil
}

// Mode returns the armed input mode.
func (a *App) Mode() (stroke.InputMode, error) {
	var mode stroke.InputMode
	err := a.do(func(p *Pipeline) error {
		mode = p.Mode()
		return nil
	})
	return mode, err
}

// SetColor changes the stroke colour and returns its canonical form.
func (a *App) SetColor(hex string) (string, error) {
	var canonical string
	err := a.do(func(p *Pipeline) error {
		if err := p.SetColor(hex); err != nil {
			return err
		}
		canonical = p.Surface().Color()
		return nil
	})
	if err != nil {
		return "", err
	}
	a.persist(SettingColor, canonical)
	return canonical, nil
}

// FlipCamera switches to the other facing camera, falling back as
// OpenFacing does. It returns the facing now in use.
func (a *App) FlipCamera() (capture.FacingMode, error) {
	current := a.facing()
	facing, err := a.openCamera(current.Other())
	if err != nil {
		a.logger.Warn("camera unavailable, gesture input disabled", "error", err)
		a.do(func(p *Pipeline) error {
			p.DisableGesture()
			return nil
		})
		return current, err
	}

	err = a.do(func(p *Pipeline) error {
		p.SetFacing(facing)
		p.SetGestureAvailable(true)
		return nil
	})
	if err != nil {
		return current, err
	}
	a.persist(SettingFacing, string(facing))
	a.logger.Info("camera flipped", "facing", facing)
	return facing, nil
}

// Resize changes the canvas size.
func (a *App) Resize(size geometry.Size) error {
	return a.do(func(p *Pipeline) error { return p.Resize(size) })
}

// Clear erases the drawing.
func (a *App) Clear() error {
	return a.do(func(p *Pipeline) error {
		p.Clear()
		return nil
	})
}

// Export returns the drawing as PNG.
func (a *App) Export() ([]byte, error) {
	var data []byte
	err := a.do(func(p *Pipeline) error {
		var err error
		data, err = p.Export()
		return err
	})
	return data, err
}

// Overlay returns the current feedback markers.
func (a *App) Overlay() (feedback.Overlay, error) {
	var o feedback.Overlay
	err := a.do(func(p *Pipeline) error {
		o = p.Overlay()
		return nil
	})
	return o, err
}

// OverlayPNG returns the feedback layer as PNG.
func (a *App) OverlayPNG() ([]byte, error) {
	var buf bytes.Buffer
	err := a.do(func(p *Pipeline) error { return p.Layer().EncodePNG(&buf) })
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Status returns a snapshot of the app state.
func (a *App) Status() Status {
	s := Status{CaptureFPS: a.captureFPS()}
	perc, loadErr := a.adapter.Status()
	s.Perception = perc.String()
	if loadErr != nil {
		s.PerceptionError = loadErr.Error()
	}

	err := a.do(func(p *Pipeline) error {
		s.Running = true
		s.Mode = p.Mode().String()
		s.State = p.State().String()
		s.GestureAvailable = p.GestureAvailable()
		s.Facing = string(p.Facing())
		s.Color = p.Surface().Color()
		s.LineWidth = p.Surface().LineWidth()
		s.Canvas = p.Surface().Size()
		s.Strokes = len(p.Surface().Strokes())
		return nil
	})
	if err != nil {
		s.Mode = a.config.Mode.String()
		s.State = stroke.Idle.String()
		s.Facing = string(a.config.Facing)
	}
	return s
}

// Snapshot returns a copy of the latest camera frame. The caller must
// close it.
func (a *App) Snapshot() (*capture.Frame, bool) {
	return a.slot.Snapshot()
}

// Subscribe returns a channel that receives the overlay after every
// change, and a function to stop receiving. Slow subscribers miss
// intermediate overlays.
func (a *App) Subscribe() (<-chan feedback.Overlay, func()) {
	ch := make(chan feedback.Overlay, 1)
	a.subMu.Lock()
	if a.stopped.Load() {
		a.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()

	cancel := func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if _, ok := a.subs[ch]; ok {
			delete(a.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (a *App) publish() {
	o := a.pipeline.Overlay()
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- o:
		default:
			// Drop the stale overlay and deliver the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- o:
			default:
			}
		}
	}
}

func (a *App) persist(key, value string) {
	if a.config.Settings == nil {
		return
	}
	if err := a.config.Settings.Set(key, value); err != nil {
		a.logger.Warn("persist setting", "key", key, "error", err)
	}
}

func (a *App) pipelineMode() string {
	m, err := a.Mode()
	if err != nil {
		return a.config.Mode.String()
	}
	return m.String()
}

func (a *App) facing() capture.FacingMode {
	f := a.config.Facing
	a.do(func(p *Pipeline) error {
		f = p.Facing()
		return nil
	})
	return f
}
