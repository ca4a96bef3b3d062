// Package stroke turns engage/release samples from either input path into
// strokes on a Canvas.
package stroke

import (
	"fmt"

	"github.com/ayusman/fingerbrush/internal/geometry"
)

// InputMode selects which input path drives the machine.
type InputMode int

const (
	Gesture InputMode = iota
	Touch
)

func (m InputMode) String() string {
	switch m {
	case Gesture:
		return "gesture"
	case Touch:
		return "touch"
	default:
		return fmt.Sprintf("InputMode(%d)", int(m))
	}
}

// ParseInputMode parses "gesture" or "touch".
func ParseInputMode(s string) (InputMode, error) {
	switch s {
	case "gesture":
		return Gesture, nil
	case "touch":
		return Touch, nil
	default:
		return Gesture, fmt.Errorf("unknown input mode %q", s)
	}
}

// State is the drawing state.
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

// Sample is one input observation in canvas space.
type Sample struct {
	Point geometry.Point
	// Engaged is true while the pinch is held or the pointer is down.
	Engaged bool
	// Mapped is false when Point could not be computed for this frame.
	// An engaged but unmapped sample holds the current state.
	Mapped bool
	// Restart ends any open stroke before the sample is applied, so a
	// new press never joins the previous polyline.
	Restart bool
}

// Canvas receives stroke segments.
type Canvas interface {
	BeginStroke(p geometry.Point) error
	ContinueStroke(p geometry.Point) error
	EndStroke()
}

// Machine is the Idle/Drawing state machine. It is the only writer of
// stroke content on its Canvas. Not safe for concurrent use.
type Machine struct {
	canvas Canvas
	mode   InputMode
	state  State
	begun  int
	ended  int
	onEnd  func(InputMode)
}

// NewMachine creates an idle machine armed for mode.
func NewMachine(canvas Canvas, mode InputMode) *Machine {
	return &Machine{canvas: canvas, mode: mode}
}

// OnEnd registers fn to run after every Drawing -> Idle transition with
// the mode that owned the stroke.
func (m *Machine) OnEnd(fn func(InputMode)) {
	m.onEnd = fn
}

// Mode returns the armed input mode.
func (m *Machine) Mode() InputMode { return m.mode }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Transitions returns how many strokes were begun and ended.
func (m *Machine) Transitions() (begun, ended int) {
	return m.begun, m.ended
}

// Feed advances the machine with a sample from source. Samples from a
// path that is not armed are ignored.
func (m *Machine) Feed(source InputMode, s Sample) error {
	if source != m.mode {
		return nil
	}
	if !s.Engaged || s.Restart {
		m.End()
	}
	if !s.Engaged {
		return nil
	}
	if !s.Mapped || !s.Point.Finite() {
		return nil
	}

	if m.state == Idle {
		if err := m.canvas.BeginStroke(s.Point); err != nil {
			return fmt.Errorf("begin stroke: %w", err)
		}
		m.state = Drawing
		m.begun++
		return nil
	}

	if err := m.canvas.ContinueStroke(s.Point); err != nil {
		return fmt.Errorf("continue stroke: %w", err)
	}
	return nil
}

// SetMode arms mode. A stroke in progress is ended first. It reports
// whether the mode changed.
func (m *Machine) SetMode(mode InputMode) bool {
	if mode == m.mode {
		return false
	}
	m.End()
	m.mode = mode
	return true
}

// End forces Drawing -> Idle. Ending an idle machine is a no-op.
func (m *Machine) End() {
	if m.state != Drawing {
		return
	}
	m.canvas.EndStroke()
	m.state = Idle
	m.ended++
	if m.onEnd != nil {
		m.onEnd(m.mode)
	}
}
