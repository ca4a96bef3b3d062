// Package feedback builds the per-frame hand indicator overlay.
//
// The overlay is recomputed from scratch every processed frame and never
// touches the drawing surface.
package feedback

import (
	"image/color"

	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/gesture"
	"github.com/ayusman/fingerbrush/internal/stroke"
)

// Marker sizes in canvas pixels.
const (
	TipRadius     = 10.0
	DotRadius     = 7.0
	RingRadius    = 10.0
	RingLineWidth = 3.0
)

var (
	// Accent marks fingertips while pinching.
	Accent = color.NRGBA{R: 52, G: 211, B: 153, A: 179}
	// Neutral marks fingertips otherwise.
	Neutral = color.NRGBA{R: 255, G: 255, B: 255, A: 179}
)

// Kind identifies a marker.
type Kind string

const (
	KindThumb Kind = "thumb"
	KindIndex Kind = "index"
	// KindDot is the filled cursor shown while drawing.
	KindDot Kind = "dot"
	// KindRing is the outlined cursor shown while pinching but idle.
	KindRing Kind = "ring"
)

// Marker is one circle on the overlay.
type Marker struct {
	Kind      Kind           `json:"kind"`
	Center    geometry.Point `json:"center"`
	Radius    float64        `json:"radius"`
	Color     color.NRGBA    `json:"color"`
	Filled    bool           `json:"filled"`
	LineWidth float64        `json:"line_width,omitempty"`
}

// Overlay is the full set of markers for one frame. An empty overlay
// means a cleared layer.
type Overlay struct {
	Markers []Marker `json:"markers"`
}

// Input is everything the overlay depends on.
type Input struct {
	Reading     gesture.Reading
	State       stroke.State
	Mapper      stroke.Mapper
	StrokeColor color.Color
}

// Build computes the overlay for one frame. Points that cannot be mapped
// are left out.
func Build(in Input) Overlay {
	o := Overlay{Markers: []Marker{}}
	if !in.Reading.Present || in.Mapper == nil {
		return o
	}

	tip := Neutral
	if in.Reading.Pinching {
		tip = Accent
	}
	if p, ok := in.Mapper.Map(in.Reading.Thumb); ok {
		o.Markers = append(o.Markers, Marker{Kind: KindThumb, Center: p, Radius: TipRadius, Color: tip, Filled: true})
	}
	if p, ok := in.Mapper.Map(in.Reading.Index); ok {
		o.Markers = append(o.Markers, Marker{Kind: KindIndex, Center: p, Radius: TipRadius, Color: tip, Filled: true})
	}

	if !in.Reading.Pinching {
		return o
	}
	p, ok := in.Mapper.Map(in.Reading.Point)
	if !ok {
		return o
	}

	c := strokeColor(in.StrokeColor)
	if in.State == stroke.Drawing {
		o.Markers = append(o.Markers, Marker{Kind: KindDot, Center: p, Radius: DotRadius, Color: c, Filled: true})
	} else {
		o.Markers = append(o.Markers, Marker{Kind: KindRing, Center: p, Radius: RingRadius, Color: c, LineWidth: RingLineWidth})
	}
	return o
}

func strokeColor(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
