// Package pixel samples window pixels through the coordinate mapper and
// compares them against expected colour palettes.
package pixel

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Tolerances are per-channel absolute differences. Zero means exact match.
const (
	DefaultTolerance = 10
	TabTolerance     = 20
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b} }

// FromRGBA drops the alpha channel.
func FromRGBA(c color.RGBA) Color { return Color{R: c.R, G: c.G, B: c.B} }

// ParseHex parses "c0c0c0" or "#C0C0C0".
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("pixel: bad hex colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("pixel: bad hex colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustHex is ParseHex for package-level palettes.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Within reports whether every channel of c differs from o by at most tol.
func (c Color) Within(o Color, tol int) bool {
	if tol < 0 {
		tol = 0
	}
	return absDiff(c.R, o.R) <= tol && absDiff(c.G, o.G) <= tol && absDiff(c.B, o.B) <= tol
}

// MatchesAny reports whether c is within tol of any colour in palette.
func (c Color) MatchesAny(palette []Color, tol int) bool {
	for _, p := range palette {
		if c.Within(p, tol) {
			return true
		}
	}
	return false
}

func (c Color) Hex() string { return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B) }

func (c Color) String() string { return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B) }

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}
