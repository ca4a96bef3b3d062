package stroke

import (
	"fmt"

	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/gesture"
)

// Mapper converts normalized source coordinates to canvas coordinates.
type Mapper interface {
	Map(p geometry.Point) (geometry.Point, bool)
}

// GestureSource produces samples from interpreter readings. A pinch is
// the engage signal; a missing hand is a release.
type GestureSource struct {
	Mapper Mapper
}

// Sample converts r into a canvas-space sample.
func (g GestureSource) Sample(r gesture.Reading) Sample {
	if !r.Present || !r.Pinching {
		return Sample{}
	}
	p, ok := g.Mapper.Map(r.Point)
	return Sample{Point: p, Engaged: true, Mapped: ok}
}

// PointerEventType is the kind of a pointer event.
type PointerEventType string

const (
	PointerDown   PointerEventType = "down"
	PointerMove   PointerEventType = "move"
	PointerUp     PointerEventType = "up"
	PointerLeave  PointerEventType = "leave"
	PointerCancel PointerEventType = "cancel"
)

// PointerEvent is a pointer/touch event relative to the canvas origin.
type PointerEvent struct {
	Type PointerEventType `json:"type"`
	X    float64          `json:"x"`
	Y    float64          `json:"y"`
}

// Validate checks the event type.
func (e PointerEvent) Validate() error {
	switch e.Type {
	case PointerDown, PointerMove, PointerUp, PointerLeave, PointerCancel:
		return nil
	default:
		return fmt.Errorf("unknown pointer event %q", e.Type)
	}
}

// TouchPointer produces samples from pointer events. Pointer coordinates
// are already in canvas space.
type TouchPointer struct {
	down bool
}

// Sample converts ev into a sample. It returns false for events that
// carry nothing to feed, such as moves while the pointer is up.
func (tp *TouchPointer) Sample(ev PointerEvent) (Sample, bool) {
	p := geometry.Point{X: ev.X, Y: ev.Y}
	switch ev.Type {
	case PointerDown:
		// A down without an up in between still starts a new stroke.
		tp.down = true
		return Sample{Point: p, Engaged: true, Mapped: p.Finite(), Restart: true}, true
	case PointerMove:
		if !tp.down {
			return Sample{}, false
		}
		return Sample{Point: p, Engaged: true, Mapped: p.Finite()}, true
	case PointerUp, PointerLeave, PointerCancel:
		tp.down = false
		return Sample{}, true
	default:
		return Sample{}, false
	}
}

// Down reports whether the pointer is pressed.
func (tp *TouchPointer) Down() bool { return tp.down }

// Reset releases the pointer without producing a sample.
func (tp *TouchPointer) Reset() { tp.down = false }
