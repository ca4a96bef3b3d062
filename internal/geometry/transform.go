// Package geometry maps normalized perception or pointer coordinates into
// drawing-surface pixel space.
package geometry

import "math"

// Point is a 2D point. Depending on context it is either normalized
// (0-1 relative to the source frame) or in surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Transform is a "cover" fit of a source frame onto a target surface.
// The source is scaled uniformly until it fills the target, and whatever
// overflows on one axis is cropped evenly from both sides.
type Transform struct {
	Source  Size    `json:"source"`
	Target  Size    `json:"target"`
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Mirror  bool    `json:"mirror"`
}

// Cover computes the cover-fit transform of src onto dst.
// Returns false if either size has a zero or negative dimension.
func Cover(src, dst Size, mirror bool) (Transform, bool) {
	if !src.Valid() || !dst.Valid() {
		return Transform{}, false
	}

	t := Transform{Source: src, Target: dst, Mirror: mirror}

	srcAspect := float64(src.Width) / float64(src.Height)
	dstAspect := float64(dst.Width) / float64(dst.Height)

	if srcAspect > dstAspect {
		// Source is wider: match heights, crop left and right.
		t.Scale = float64(dst.Height) / float64(src.Height)
		t.OffsetX = (float64(dst.Width) - float64(src.Width)*t.Scale) / 2
	} else {
		// Source is taller (or equal): match widths, crop top and bottom.
		t.Scale = float64(dst.Width) / float64(src.Width)
		t.OffsetY = (float64(dst.Height) - float64(src.Height)*t.Scale) / 2
	}

	return t, true
}

// Valid reports whether the transform was built from usable sizes.
func (t Transform) Valid() bool {
	return t.Source.Valid() && t.Target.Valid() && t.Scale > 0
}

// Map converts a normalized source point into target pixel coordinates.
// Returns false when the transform is degenerate or the result is not finite.
func (t Transform) Map(p Point) (Point, bool) {
	if !t.Valid() || !p.Finite() {
		return Point{}, false
	}

	x := p.X
	if t.Mirror {
		x = 1 - x
	}

	out := Point{
		X: x*float64(t.Source.Width)*t.Scale + t.OffsetX,
		Y: p.Y*float64(t.Source.Height)*t.Scale + t.OffsetY,
	}
	if !out.Finite() {
		return Point{}, false
	}
	return out, true
}
