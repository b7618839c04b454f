// Package coords converts logical points, expressed against a fixed reference
// window size, into physical client-relative and absolute screen points.
package coords

import (
	"fmt"
	"log/slog"
	"maps"
)

// Point is an integer coordinate.
type Point struct {
	X, Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Size is a width/height pair in pixels.
type Size struct {
	W, H int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Rect is a client area in absolute screen coordinates.
type Rect struct {
	X, Y, W, H int
}

// Origin is the top-left corner of the rect.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size is the extent of the rect.
func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// RefID names the reference window a logical point was measured against.
type RefID string

// DefaultRefSize is used when a RefID has no reference size registered.
var DefaultRefSize = Size{W: 1024, H: 768}

// ClientArea reports a window's current client area on screen.
type ClientArea interface {
	ClientRect() (Rect, error)
}

// Mapper scales logical points. It is read-only after construction.
type Mapper struct {
	refs map[RefID]Size
	log  *slog.Logger
}

func NewMapper(refs map[RefID]Size) *Mapper {
	return &Mapper{
		refs: maps.Clone(refs),
		log:  slog.Default().With("component", "coords"),
	}
}

// RefSize returns the reference size for ref. Unknown or degenerate entries
// yield DefaultRefSize and false.
func (m *Mapper) RefSize(ref RefID) (Size, bool) {
	s, ok := m.refs[ref]
	if !ok || s.W <= 0 || s.H <= 0 {
		m.log.Warn("no reference window size, using default", "ref", ref, "default", DefaultRefSize)
		return DefaultRefSize, false
	}
	return s, true
}

// ToPhysical scales p from the reference size of ref to actual. Each axis is
// scaled independently and truncated toward zero.
func (m *Mapper) ToPhysical(p Point, ref RefID, actual Size) Point {
	rs, _ := m.RefSize(ref)
	return Point{
		X: scale(p.X, actual.W, rs.W),
		Y: scale(p.Y, actual.H, rs.H),
	}
}

// ScaleSize scales a logical extent the same way as ToPhysical.
func (m *Mapper) ScaleSize(s Size, ref RefID, actual Size) Size {
	rs, _ := m.RefSize(ref)
	return Size{
		W: scale(s.W, actual.W, rs.W),
		H: scale(s.H, actual.H, rs.H),
	}
}

// ToScreen translates a client-relative point by the client area origin.
func ToScreen(p, origin Point) Point {
	return Point{X: p.X + origin.X, Y: p.Y + origin.Y}
}

// Resolve maps p to an absolute screen point using the window's current
// client area.
func (m *Mapper) Resolve(p Point, ref RefID, win ClientArea) (Point, error) {
	r, err := win.ClientRect()
	if err != nil {
		return Point{}, err
	}
	return ToScreen(m.ToPhysical(p, ref, r.Size()), r.Origin()), nil
}

// scale computes floor(v * num / den) in integer arithmetic so table values
// that land exactly on a pixel boundary never drift from float rounding.
func scale(v, num, den int) int {
	return v * num / den
}
