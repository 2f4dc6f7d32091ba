package scene

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a linear-space RGB color with components in [0, 1].
type Color struct {
	R, G, B float32
}

// Common colors.
var (
	White = Color{1, 1, 1}
	Black = Color{0, 0, 0}
)

// ParseColor parses "#rrggbb", "rrggbb" or "0xrrggbb" as an sRGB color and
// converts it to linear space.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(hex, "0x"), strings.HasPrefix(hex, "0X"):
		hex = "#" + hex[2:]
	case !strings.HasPrefix(hex, "#"):
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.LinearRgb()
	return Color{float32(r), float32(g), float32(b)}, nil
}

// MustParseColor is like ParseColor but panics on error.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// MultiplyScalar scales every component by s.
func (c Color) MultiplyScalar(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Hex formats the color as "#rrggbb" in sRGB.
func (c Color) Hex() string {
	return colorful.LinearRgb(float64(c.R), float64(c.G), float64(c.B)).Clamped().Hex()
}

// SRGB returns the color converted to sRGB components.
func (c Color) SRGB() (r, g, b float32) {
	s := colorful.LinearRgb(float64(c.R), float64(c.G), float64(c.B)).Clamped()
	return float32(s.R), float32(s.G), float32(s.B)
}
