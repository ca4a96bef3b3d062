package app

import (
	"fmt"
	"image/color"
	"log/slog"

	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/feedback"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/gesture"
	"github.com/ayusman/fingerbrush/internal/perception"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// DetectionResult is the outcome of one detection call, delivered back
// to the pipeline owner.
type DetectionResult struct {
	// Generation is the pipeline generation the detection was issued in.
	// Results from an older generation are discarded.
	Generation uint64
	Frame      perception.LandmarkFrame
	// Updated is false when the adapter skipped the frame.
	Updated bool
	Source  geometry.Size
	Err     error
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Logger         *slog.Logger
	Canvas         geometry.Size
	StrokeColor    string
	LineWidth      float64
	PinchThreshold float64
	Smoothing      float64
	Mode           stroke.InputMode
	Facing         capture.FacingMode
}

// Pipeline is the drawing core: interpreter, mapper, stroke machine,
// surface and feedback layer. It has no locks; exactly one goroutine
// may use it.
type Pipeline struct {
	logger  *slog.Logger
	interp  *gesture.Interpreter
	mapper  *geometry.Mapper
	machine *stroke.Machine
	surface *surface.Surface
	layer   *feedback.Layer
	gesture stroke.GestureSource
	touch   stroke.TouchPointer

	reading          gesture.Reading
	overlay          feedback.Overlay
	facing           capture.FacingMode
	gestureAvailable bool
	generation       uint64
	inFlight         bool
	closed           bool
}

// NewPipeline creates an idle pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Facing == "" {
		cfg.Facing = capture.FacingUser
	}

	surf, err := surface.New(cfg.Canvas, surface.Options{Color: cfg.StrokeColor, LineWidth: cfg.LineWidth})
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	layer, err := feedback.NewLayer(cfg.Canvas)
	if err != nil {
		surf.Close()
		return nil, fmt.Errorf("create feedback layer: %w", err)
	}

	p := &Pipeline{
		logger:           logger,
		interp:           gesture.NewInterpreter(cfg.PinchThreshold, cfg.Smoothing),
		mapper:           geometry.NewMapper(cfg.Canvas, cfg.Facing.Mirror()),
		surface:          surf,
		layer:            layer,
		facing:           cfg.Facing,
		gestureAvailable: true,
		overlay:          feedback.Overlay{Markers: []feedback.Marker{}},
	}
	p.gesture = stroke.GestureSource{Mapper: p.mapper}
	p.machine = stroke.NewMachine(surf, cfg.Mode)
	p.machine.OnEnd(func(mode stroke.InputMode) {
		if mode == stroke.Gesture {
			p.interp.Reset()
		}
	})
	return p, nil
}

// WantDetection reports whether a new detection should be issued.
func (p *Pipeline) WantDetection() bool {
	return !p.closed && !p.inFlight && p.gestureAvailable && p.machine.Mode() == stroke.Gesture
}

// BeginDetection takes the single in-flight slot and returns the
// generation the result must carry.
func (p *Pipeline) BeginDetection() uint64 {
	p.inFlight = true
	return p.generation
}

// InFlight reports whether a detection is outstanding.
func (p *Pipeline) InFlight() bool { return p.inFlight }

// HandleDetection processes a detection result. It reports whether the
// result was applied.
func (p *Pipeline) HandleDetection(res DetectionResult) bool {
	p.inFlight = false
	if p.closed || res.Generation != p.generation {
		return false
	}
	if res.Err != nil {
		p.logger.Debug("detection failed", "error", res.Err)
		return false
	}
	if !res.Updated || p.machine.Mode() != stroke.Gesture || !p.gestureAvailable {
		return false
	}

	if res.Source.Valid() && p.mapper.SetSource(res.Source) {
		p.logger.Debug("source size changed", "width", res.Source.Width, "height", res.Source.Height)
	}

	// Feedback reflects the state the frame started in, so the ring shows
	// on the frame a pinch begins and the dot from the next one on.
	before := p.machine.State()
	p.reading = p.interp.Interpret(res.Frame.Hand)
	if err := p.machine.Feed(stroke.Gesture, p.gesture.Sample(p.reading)); err != nil {
		p.logger.Warn("gesture stroke", "error", err)
	}
	p.paint(before)
	return true
}

// Pointer feeds a touch/pointer event.
func (p *Pipeline) Pointer(ev stroke.PointerEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if p.machine.Mode() != stroke.Touch {
		return nil
	}
	s, ok := p.touch.Sample(ev)
	if !ok {
		return nil
	}
	return p.machine.Feed(stroke.Touch, s)
}

// SetMode arms mode. A stroke in progress from the other path is ended
// and the gesture overlay is cleared.
func (p *Pipeline) SetMode(mode stroke.InputMode) bool {
	if !p.machine.SetMode(mode) {
		return false
	}
	p.touch.Reset()
	p.interp.Reset()
	p.reading = gesture.Reading{}
	p.repaint()
	p.logger.Info("input mode switched", "mode", mode)
	return true
}

// Mode returns the armed input mode.
func (p *Pipeline) Mode() stroke.InputMode { return p.machine.Mode() }

// SetGestureAvailable enables or disables the gesture path, e.g. when
// the camera cannot be opened. Touch input is unaffected.
func (p *Pipeline) SetGestureAvailable(ok bool) {
	if ok == p.gestureAvailable {
		return
	}
	p.gestureAvailable = ok
	if !ok {
		if p.machine.Mode() == stroke.Gesture {
			p.machine.End()
		}
		p.interp.Reset()
		p.reading = gesture.Reading{}
		p.repaint()
	}
}

// DisableGesture turns the gesture path off after a camera failure and
// arms touch input if gesture was armed.
func (p *Pipeline) DisableGesture() {
	p.SetGestureAvailable(false)
	if p.Mode() == stroke.Gesture {
		p.SetMode(stroke.Touch)
	}
}

// GestureAvailable reports whether the gesture path can be used.
func (p *Pipeline) GestureAvailable() bool { return p.gestureAvailable }

// SetFacing applies a new camera facing. Results of detections issued
// before the switch are discarded.
func (p *Pipeline) SetFacing(f capture.FacingMode) {
	p.generation++
	p.facing = f
	p.mapper.SetMirror(f.Mirror())
}

// Facing returns the current camera facing.
func (p *Pipeline) Facing() capture.FacingMode { return p.facing }

// SetColor changes the stroke colour for subsequent segments.
func (p *Pipeline) SetColor(hex string) error {
	return p.surface.SetColor(hex)
}

// Resize changes the canvas size. Segments already drawn stay where
// they are; only later segments use the new mapping.
func (p *Pipeline) Resize(size geometry.Size) error {
	if err := p.surface.Resize(size); err != nil {
		return err
	}
	if err := p.layer.Resize(size); err != nil {
		return err
	}
	p.mapper.Resize(size)
	p.repaint()
	return nil
}

// Clear erases the drawing surface.
func (p *Pipeline) Clear() {
	p.surface.Clear()
}

// Export returns the drawing as PNG.
func (p *Pipeline) Export() ([]byte, error) {
	return p.surface.ExportPNG()
}

// Overlay returns the current feedback markers.
func (p *Pipeline) Overlay() feedback.Overlay { return p.overlay }

// Reading returns the latest interpreter output.
func (p *Pipeline) Reading() gesture.Reading { return p.reading }

// State returns the stroke state.
func (p *Pipeline) State() stroke.State { return p.machine.State() }

// Transitions returns the begun and ended stroke counts.
func (p *Pipeline) Transitions() (begun, ended int) { return p.machine.Transitions() }

// Surface exposes the drawing surface for read-only use.
func (p *Pipeline) Surface() *surface.Surface { return p.surface }

// Layer exposes the feedback layer for read-only use.
func (p *Pipeline) Layer() *feedback.Layer { return p.layer }

// Teardown ends any open stroke, invalidates outstanding detections and
// releases the rasters.
func (p *Pipeline) Teardown() {
	if p.closed {
		return
	}
	p.machine.End()
	p.generation++
	p.closed = true
	if err := p.surface.Close(); err != nil {
		p.logger.Warn("close surface", "error", err)
	}
	if err := p.layer.Close(); err != nil {
		p.logger.Warn("close feedback layer", "error", err)
	}
}

func (p *Pipeline) repaint() {
	p.paint(p.machine.State())
}

func (p *Pipeline) paint(state stroke.State) {
	p.overlay = feedback.Build(feedback.Input{
		Reading:     p.reading,
		State:       state,
		Mapper:      p.mapper,
		StrokeColor: p.strokeColor(),
	})
	if err := p.layer.Paint(p.overlay); err != nil {
		p.logger.Warn("paint feedback", "error", err)
	}
}

func (p *Pipeline) strokeColor() color.Color {
	c, _, err := surface.ParseColor(p.surface.Color())
	if err != nil {
		return nil
	}
	return c
}
