// Package desktoptest provides a scripted in-memory desktop for tests.
package desktoptest

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
)

// Window is a fake top-level window.
type Window struct {
	d *Desktop

	Name   string
	Client coords.Rect
	Frame  coords.Rect

	ActivateErr error
	CloseErr    error
	// StayOpen keeps the window listed after Close.
	StayOpen bool
}

func (w *Window) Title() string { return w.Name }

func (w *Window) Bounds() (coords.Rect, error) {
	if w.Frame == (coords.Rect{}) {
		return w.Client, nil
	}
	return w.Frame, nil
}

func (w *Window) ClientRect() (coords.Rect, error) {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	if !w.d.hasLocked(w) {
		return coords.Rect{}, fmt.Errorf("window %q closed", w.Name)
	}
	return w.Client, nil
}

func (w *Window) Activate() error {
	w.d.record("activate " + w.Name)
	if w.ActivateErr != nil {
		return w.ActivateErr
	}
	w.d.mu.Lock()
	w.d.active = w
	w.d.mu.Unlock()
	return nil
}

func (w *Window) Close() error {
	w.d.record("close " + w.Name)
	if w.CloseErr != nil {
		return w.CloseErr
	}
	if !w.StayOpen {
		w.d.Remove(w)
	}
	return nil
}

// Desktop implements every desktop capability in memory. It is safe for
// concurrent use.
type Desktop struct {
	mu      sync.Mutex
	windows []*Window
	active  *Window
	events  []string

	// Pixels maps absolute screen points to colours. Unset points read as
	// Background.
	Pixels     map[coords.Point]color.RGBA
	Background color.RGBA
	PixelErr   error
	CaptureErr error
	ListErr    error
	LaunchErr  error

	// OnClick runs after every click, letting tests open popups in response.
	OnClick func(p coords.Point)
	// OnLaunch runs after a successful Open.
	OnLaunch func(path string)
}

// New returns an empty fake desktop.
func New() *Desktop {
	return &Desktop{Pixels: make(map[coords.Point]color.RGBA), Background: color.RGBA{255, 255, 255, 255}}
}

// Bundle exposes d as a desktop.Desktop.
func (d *Desktop) Bundle() *desktop.Desktop {
	return &desktop.Desktop{Windows: d, Input: d, Screen: d, Launcher: d}
}

// Add opens a window and makes it active.
func (d *Desktop) Add(title string, client coords.Rect) *Window {
	w := &Window{d: d, Name: title, Client: client}
	d.mu.Lock()
	d.windows = append(d.windows, w)
	d.active = w
	d.mu.Unlock()
	return w
}

// Remove closes w.
func (d *Desktop) Remove(w *Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.windows {
		if x == w {
			d.windows = append(d.windows[:i], d.windows[i+1:]...)
			break
		}
	}
	if d.active == w {
		d.active = nil
		if n := len(d.windows); n > 0 {
			d.active = d.windows[n-1]
		}
	}
}

// Has reports whether w is still open.
func (d *Desktop) Has(w *Window) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasLocked(w)
}

func (d *Desktop) hasLocked(w *Window) bool {
	for _, x := range d.windows {
		if x == w {
			return true
		}
	}
	return false
}

// SetPixel sets the colour at an absolute screen point.
func (d *Desktop) SetPixel(p coords.Point, c color.RGBA) {
	d.mu.Lock()
	d.Pixels[p] = c
	d.mu.Unlock()
}

// Events returns the recorded input and window events in order.
func (d *Desktop) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Count returns how many recorded events start with prefix.
func (d *Desktop) Count(prefix string) int {
	n := 0
	for _, e := range d.Events() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (d *Desktop) record(e string) {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
}

func (d *Desktop) List() ([]desktop.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	out := make([]desktop.Window, len(d.windows))
	for i, w := range d.windows {
		out[i] = w
	}
	return out, nil
}

func (d *Desktop) Active() (desktop.Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return nil, desktop.ErrNoWindow
	}
	return d.active, nil
}

func (d *Desktop) Click(p coords.Point) error {
	d.record(fmt.Sprintf("click %d,%d", p.X, p.Y))
	if d.OnClick != nil {
		d.OnClick(p)
	}
	return nil
}

func (d *Desktop) MoveTo(p coords.Point, _ time.Duration) error {
	d.record(fmt.Sprintf("move %d,%d", p.X, p.Y))
	return nil
}

func (d *Desktop) KeyTap(key string, mods ...string) error {
	combo := append(append([]string(nil), mods...), key)
	d.record("key " + strings.Join(combo, "+"))
	if key == "f4" && len(mods) == 1 && mods[0] == "alt" {
		d.mu.Lock()
		w := d.active
		d.mu.Unlock()
		if w != nil && !w.StayOpen {
			d.Remove(w)
		}
	}
	return nil
}

func (d *Desktop) Type(s string) error {
	d.record("type " + s)
	return nil
}

func (d *Desktop) Pixel(p coords.Point) (color.RGBA, error) {
	d.record(fmt.Sprintf("pixel %d,%d", p.X, p.Y))
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PixelErr != nil {
		return color.RGBA{}, d.PixelErr
	}
	if c, ok := d.Pixels[p]; ok {
		return c, nil
	}
	return d.Background, nil
}

func (d *Desktop) Capture(r coords.Rect) (image.Image, error) {
	d.record(fmt.Sprintf("capture %d,%d %dx%d", r.X, r.Y, r.W, r.H))
	if d.CaptureErr != nil {
		return nil, d.CaptureErr
	}
	if r.W <= 0 || r.H <= 0 {
		return nil, errors.New("empty region")
	}
	img := image.NewRGBA(image.Rect(0, 0, r.W, r.H))
	d.mu.Lock()
	defer d.mu.Unlock()
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			c, ok := d.Pixels[coords.Point{X: r.X + x, Y: r.Y + y}]
			if !ok {
				c = d.Background
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (d *Desktop) Open(path string) error {
	d.record("open " + path)
	if d.LaunchErr != nil {
		return d.LaunchErr
	}
	if d.OnLaunch != nil {
		d.OnLaunch(path)
	}
	return nil
}
