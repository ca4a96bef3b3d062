package feedback

import (
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"

	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// Layer is a transparent raster the overlay is painted onto, kept apart
// from the drawing surface.
type Layer struct {
	dc *gg.Context
}

// NewLayer creates a layer of the given size.
func NewLayer(size geometry.Size) (*Layer, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return &Layer{dc: gg.NewContext(size.Width, size.Height)}, nil
}

// Paint clears the layer and draws o.
func (l *Layer) Paint(o Overlay) error {
	return Paint(l.dc, o)
}

// Resize replaces the layer with a blank one of the new size.
func (l *Layer) Resize(size geometry.Size) error {
	if err := checkSize(size); err != nil {
		return err
	}
	if err := l.dc.Resize(size.Width, size.Height); err != nil {
		return fmt.Errorf("resize layer: %w", err)
	}
	l.dc.Clear()
	return nil
}

// Image returns a snapshot of the layer.
func (l *Layer) Image() image.Image {
	return l.dc.Image()
}

// EncodePNG writes the layer as PNG.
func (l *Layer) EncodePNG(w io.Writer) error {
	return l.dc.EncodePNG(w)
}

// Close releases the rendering context.
func (l *Layer) Close() error {
	return l.dc.Close()
}

func checkSize(size geometry.Size) error {
	if !size.Valid() || size.Width > surface.MaxDimension || size.Height > surface.MaxDimension {
		return fmt.Errorf("%w: layer %dx%d", surface.ErrInvalidSize, size.Width, size.Height)
	}
	return nil
}

// Paint fully clears dc and draws every marker of o onto it.
func Paint(dc *gg.Context, o Overlay) error {
	dc.Clear()
	for _, m := range o.Markers {
		dc.SetColor(m.Color)
		dc.DrawCircle(m.Center.X, m.Center.Y, m.Radius)
		var err error
		if m.Filled {
			err = dc.Fill()
		} else {
			dc.SetLineWidth(m.LineWidth)
			err = dc.Stroke()
		}
		if err != nil {
			return fmt.Errorf("paint %s marker: %w", m.Kind, err)
		}
	}
	return nil
}
