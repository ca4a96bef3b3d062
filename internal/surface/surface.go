// Package surface implements the raster drawing surface strokes are
// committed to.
package surface

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/gogpu/gg"

	"github.com/ayusman/fingerbrush/internal/geometry"
)

const (
	// DefaultLineWidth is the stroke width in pixels.
	DefaultLineWidth = 5.0
	// MaxDimension bounds each side of a surface in pixels.
	MaxDimension = 8192
)

var (
	ErrInvalidSize  = errors.New("invalid surface size")
	ErrInvalidColor = errors.New("invalid colour")
	ErrNoStroke     = errors.New("no active stroke")
	ErrStrokeActive = errors.New("stroke already active")
)

// Stroke is a committed polyline in canvas pixels.
type Stroke struct {
	Points []geometry.Point `json:"points"`
	Color  string           `json:"color"`
	Width  float64          `json:"width"`
}

// Options configures a new Surface.
type Options struct {
	Color     string
	LineWidth float64
}

// Surface is a transparent raster that strokes are rendered onto
// segment by segment. Not safe for concurrent use.
type Surface struct {
	dc     *gg.Context
	size   geometry.Size
	color  color.Color
	hex    string
	width  float64
	active *Stroke
	done   []Stroke
}

// New creates a blank surface.
func New(size geometry.Size, opts Options) (*Surface, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if opts.Color == "" {
		opts.Color = DefaultColor
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = DefaultLineWidth
	}
	c, hex, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}

	return &Surface{
		dc:    gg.NewContext(size.Width, size.Height),
		size:  size,
		color: c,
		hex:   hex,
		width: opts.LineWidth,
	}, nil
}

// Size returns the surface size in pixels.
func (s *Surface) Size() geometry.Size { return s.size }

// Color returns the current stroke colour.
func (s *Surface) Color() string { return s.hex }

// LineWidth returns the stroke width.
func (s *Surface) LineWidth() float64 { return s.width }

// SetColor changes the colour of segments drawn from now on.
func (s *Surface) SetColor(hex string) error {
	c, canonical, err := ParseColor(hex)
	if err != nil {
		return err
	}
	s.color = c
	s.hex = canonical
	return nil
}

// BeginStroke starts a stroke at p. Nothing is rasterized until the
// stroke is continued.
func (s *Surface) BeginStroke(p geometry.Point) error {
	if s.active != nil {
		return ErrStrokeActive
	}
	s.active = &Stroke{
		Points: []geometry.Point{p},
		Color:  s.hex,
		Width:  s.width,
	}
	return nil
}

// ContinueStroke appends p and renders the segment from the previous
// point immediately. A repeated point is recorded but leaves the raster
// unchanged.
func (s *Surface) ContinueStroke(p geometry.Point) error {
	if s.active == nil {
		return ErrNoStroke
	}
	prev := s.active.Points[len(s.active.Points)-1]
	s.active.Points = append(s.active.Points, p)
	if prev == p {
		return nil
	}

	s.dc.SetColor(s.color)
	s.dc.SetLineWidth(s.width)
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.SetLineJoin(gg.LineJoinRound)
	s.dc.MoveTo(prev.X, prev.Y)
	s.dc.LineTo(p.X, p.Y)
	if err := s.dc.Stroke(); err != nil {
		return fmt.Errorf("render segment: %w", err)
	}
	return nil
}

// EndStroke commits the active stroke. It is a no-op without one.
func (s *Surface) EndStroke() {
	if s.active == nil {
		return
	}
	s.done = append(s.done, *s.active)
	s.active = nil
}

// Active reports whether a stroke is in progress.
func (s *Surface) Active() bool { return s.active != nil }

// Strokes returns the committed strokes.
func (s *Surface) Strokes() []Stroke {
	out := make([]Stroke, len(s.done))
	copy(out, s.done)
	return out
}

// Clear erases every pixel and forgets committed strokes. A stroke in
// progress continues from its last point.
func (s *Surface) Clear() {
	s.dc.Clear()
	s.done = nil
	if s.active != nil {
		last := s.active.Points[len(s.active.Points)-1]
		s.active.Points = []geometry.Point{last}
	}
}

// Resize changes the surface size. Existing pixels are kept at the same
// position and clipped to the new bounds.
func (s *Surface) Resize(size geometry.Size) error {
	if err := checkSize(size); err != nil {
		return err
	}
	if size == s.size {
		return nil
	}

	old := s.dc.Image()
	dc := gg.NewContext(size.Width, size.Height)
	// Drawn at the origin with no scaling, so pixels copy 1:1.
	dc.DrawImageEx(gg.ImageBufFromImage(old), gg.DrawImageOptions{
		Opacity:   1.0,
		BlendMode: gg.BlendNormal,
	})
	if err := s.dc.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}

	s.dc = dc
	s.size = size
	return nil
}

// Image returns a snapshot of the raster.
func (s *Surface) Image() image.Image {
	return s.dc.Image()
}

// Export writes the raster as PNG.
func (s *Surface) Export(w io.Writer) error {
	if err := s.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG returns the raster as PNG bytes.
func (s *Surface) ExportPNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the rendering context.
func (s *Surface) Close() error {
	return s.dc.Close()
}

func checkSize(size geometry.Size) error {
	if !size.Valid() || size.Width > MaxDimension || size.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.Width, size.Height)
	}
	return nil
}
