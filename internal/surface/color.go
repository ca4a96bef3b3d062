package surface

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultColor is the initial stroke colour.
const DefaultColor = "#ffffff"

// Palette is the preset list of stroke colours offered to users. Any
// other valid hex colour is accepted as well.
var Palette = []string{
	"#ffffff", "#9ca3af", "#000000", "#ef4444",
	"#f97316", "#fbbf24", "#84cc16", "#22c55e",
	"#14b8a6", "#06b6d4", "#3b82f6", "#8b5cf6",
	"#ec4899", "#a16207", "#78350f", "#f7ddb5",
}

// ParseColor parses a "#rgb" or "#rrggbb" colour and returns it with its
// canonical lowercase "#rrggbb" form.
func ParseColor(s string) (color.Color, string, error) {
	if len(s) != 4 && len(s) != 7 {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, c.Hex(), nil
}
