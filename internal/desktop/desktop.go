// Package desktop defines the device capabilities the automation consumes:
// window enumeration, mouse and keyboard input, pixel sampling and capture.
// Components receive these as interfaces so tests can drive them with the
// fake in desktoptest.
package desktop

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/cheminotify/agent/internal/coords"
)

// ErrNoWindow is returned when no window satisfies a lookup.
var ErrNoWindow = errors.New("no matching window")

// Window is a handle to one top-level window.
type Window interface {
	Title() string
	// Bounds is the outer frame in screen coordinates.
	Bounds() (coords.Rect, error)
	// ClientRect is the client area in screen coordinates.
	ClientRect() (coords.Rect, error)
	Activate() error
	// Close asks the window to close (WM_CLOSE on Windows).
	Close() error
}

// Windows enumerates visible top-level windows.
type Windows interface {
	// List returns visible windows with a non-empty title.
	List() ([]Window, error)
	// Active returns the foreground window.
	Active() (Window, error)
}

// Input injects mouse and keyboard events at absolute screen points.
type Input interface {
	Click(p coords.Point) error
	MoveTo(p coords.Point, d time.Duration) error
	// KeyTap presses key with optional modifiers ("ctrl", "alt", "shift").
	KeyTap(key string, mods ...string) error
	Type(s string) error
}

// Screen samples the framebuffer.
type Screen interface {
	Pixel(p coords.Point) (color.RGBA, error)
	Capture(r coords.Rect) (image.Image, error)
}

// Launcher opens a file with its associated application.
type Launcher interface {
	Open(path string) error
}

// Desktop bundles the capabilities of one machine.
type Desktop struct {
	Windows  Windows
	Input    Input
	Screen   Screen
	Launcher Launcher
}

// Titles returns the set of visible window titles.
func Titles(ws Windows) (map[string]bool, error) {
	list, err := ws.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(list))
	for _, w := range list {
		if t := w.Title(); t != "" {
			out[t] = true
		}
	}
	return out, nil
}

// FindTitle returns the first visible window whose title equals title.
func FindTitle(ws Windows, title string) (Window, error) {
	list, err := ws.List()
	if err != nil {
		return nil, err
	}
	for _, w := range list {
		if w.Title() == title {
			return w, nil
		}
	}
	return nil, ErrNoWindow
}

// IsActive reports whether w is the foreground window. Windows are compared
// by title since handles are not comparable across backends.
func IsActive(ws Windows, w Window) bool {
	a, err := ws.Active()
	if err != nil || a == nil {
		return false
	}
	return a.Title() == w.Title()
}
