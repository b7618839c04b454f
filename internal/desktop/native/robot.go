// Package native implements the desktop capabilities on the real machine:
// robotgo for input, pixels and capture, user32 for windows on Windows.
package native

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/cheminotify/agent/internal/coords"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/pixel"
)

// Per-step sleep bounds for smooth moves, in milliseconds.
const (
	minStepDelay = 0.2
	maxStepDelay = 10.0
)

// Robot implements Input and Screen with robotgo.
type Robot struct{}

func (Robot) Click(p coords.Point) error {
	robotgo.Move(p.X, p.Y)
	robotgo.Click("left", false)
	return nil
}

func (Robot) MoveTo(p coords.Point, d time.Duration) error {
	if d <= 0 {
		robotgo.Move(p.X, p.Y)
		return nil
	}
	x, y := robotgo.GetMousePos()
	low, high := smoothSpeed(math.Hypot(float64(p.X-x), float64(p.Y-y)), d)
	robotgo.MoveSmooth(p.X, p.Y, low, high)
	return nil
}

// smoothSpeed returns MoveSmooth's per-step sleep range so a glide of dist
// pixels lasts about d. robotgo advances roughly one pixel per step and
// sleeps a uniform random time in [low, high] ms after each.
func smoothSpeed(dist float64, d time.Duration) (low, high float64) {
	dist = math.Max(dist, 1)
	step := float64(d) / float64(time.Millisecond) / dist
	step = math.Min(math.Max(step, minStepDelay), maxStepDelay)
	return step / 2, step * 3 / 2
}

func (Robot) KeyTap(key string, mods ...string) error {
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

func (Robot) Type(s string) error {
	robotgo.TypeStr(s)
	return nil
}

func (Robot) Pixel(p coords.Point) (color.RGBA, error) {
	c, err := pixelRGBA(robotgo.GetPixelColor(p.X, p.Y))
	if err != nil {
		return color.RGBA{}, apperrors.Wrapf(err, apperrors.CaptureFailed, "read pixel at %v", p)
	}
	return c, nil
}

func (Robot) Capture(r coords.Rect) (image.Image, error) {
	if r.W <= 0 || r.H <= 0 {
		return nil, apperrors.Newf(apperrors.CaptureFailed, "empty capture region %+v", r)
	}
	bit := robotgo.CaptureScreen(r.X, r.Y, r.W, r.H)
	if bit == nil {
		return nil, apperrors.Newf(apperrors.CaptureFailed, "capture region %+v", r)
	}
	defer robotgo.FreeBitmap(bit)
	return robotgo.ToImage(bit), nil
}

// pixelRGBA decodes robotgo's "rrggbb" pixel strings.
func pixelRGBA(hex string) (color.RGBA, error) {
	c, err := pixel.ParseHex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}, nil
}
