package gesture

import (
	"github.com/ayusman/fingerbrush/internal/detector"
	"github.com/ayusman/fingerbrush/internal/geometry"
)

// Interpreter defaults.
const (
	// DefaultPinchThreshold is the normalized thumb-index distance below
	// which the hand counts as pinching.
	DefaultPinchThreshold = 0.06
	// DefaultSmoothing is the weight of the newest sample in the
	// exponential filter. Higher values follow the hand more closely.
	DefaultSmoothing = 0.3
)

// Reading is the interpretation of one frame.
type Reading struct {
	// Present is false when no hand was detected. All other fields are
	// zero in that case.
	Present  bool           `json:"present"`
	Pinching bool           `json:"pinching"`
	Distance float64        `json:"distance"`
	Thumb    geometry.Point `json:"thumb"`
	Index    geometry.Point `json:"index"`
	// Point is the draw point: the smoothed fingertip midpoint while
	// pinching, the raw midpoint otherwise.
	Point geometry.Point `json:"point"`
}

// Interpreter classifies pinches and smooths the draw point.
// The filter only holds state while a pinch is held; releasing the pinch
// or losing the hand clears it, and the next pinch re-seeds it with the
// first raw point.
type Interpreter struct {
	threshold float64
	alpha     float64
	smoothed  geometry.Point
	seeded    bool
}

// NewInterpreter creates an Interpreter. Non-positive values fall back to
// the defaults; alpha is capped at 1.
func NewInterpreter(threshold, alpha float64) *Interpreter {
	if threshold <= 0 {
		threshold = DefaultPinchThreshold
	}
	if alpha <= 0 {
		alpha = DefaultSmoothing
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Interpreter{threshold: threshold, alpha: alpha}
}

// Interpret processes one frame. A nil or malformed hand is a no-hand
// signal: it reports Present=false and clears the filter.
func (in *Interpreter) Interpret(hand *detector.HandLandmarks) Reading {
	if !hand.Valid() {
		in.Reset()
		return Reading{}
	}

	thumb := toPoint(hand.Points[detector.ThumbTip])
	index := toPoint(hand.Points[detector.IndexTip])
	raw := geometry.Midpoint(thumb, index)
	distance := geometry.Distance(thumb, index)

	r := Reading{
		Present:  true,
		Pinching: distance < in.threshold,
		Distance: distance,
		Thumb:    thumb,
		Index:    index,
		Point:    raw,
	}

	if !r.Pinching {
		in.Reset()
		return r
	}

	r.Point = in.smooth(raw)
	return r
}

// Smoothed returns the filter state and whether it is seeded.
func (in *Interpreter) Smoothed() (geometry.Point, bool) {
	return in.smoothed, in.seeded
}

// Reset clears the filter. The next sample seeds it.
func (in *Interpreter) Reset() {
	in.smoothed = geometry.Point{}
	in.seeded = false
}

func (in *Interpreter) smooth(raw geometry.Point) geometry.Point {
	if !in.seeded {
		in.smoothed = raw
		in.seeded = true
		return raw
	}
	in.smoothed.X = in.smoothed.X*(1-in.alpha) + raw.X*in.alpha
	in.smoothed.Y = in.smoothed.Y*(1-in.alpha) + raw.Y*in.alpha
	return in.smoothed
}

func toPoint(p detector.Point3D) geometry.Point {
	return geometry.Point{X: p.X, Y: p.Y}
}
