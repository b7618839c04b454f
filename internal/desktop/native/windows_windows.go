//go:build windows

package native

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
)

const (
	wmClose   = 0x0010
	swRestore = 9
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
	procGetClientRect        = user32.NewProc("GetClientRect")
	procClientToScreen       = user32.NewProc("ClientToScreen")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procShowWindow           = user32.NewProc("ShowWindow")
	procIsIconic             = user32.NewProc("IsIconic")
	procPostMessageW         = user32.NewProc("PostMessageW")
)

// NewWindows returns the user32 window enumerator.
func NewWindows() desktop.Windows { return user32Windows{} }

type user32Windows struct{}

// EnumWindows callbacks are a finite resource; one is created for the process.
var (
	enumMu    sync.Mutex
	enumFound []windows.HWND
	enumProc  = windows.NewCallback(func(h windows.HWND, _ uintptr) uintptr {
		enumFound = append(enumFound, h)
		return 1
	})
)

func (user32Windows) List() ([]desktop.Window, error) {
	enumMu.Lock()
	enumFound = enumFound[:0]
	err := windows.EnumWindows(enumProc, nil)
	handles := append([]windows.HWND(nil), enumFound...)
	enumMu.Unlock()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "EnumWindows")
	}

	out := make([]desktop.Window, 0, len(handles))
	for _, h := range handles {
		if !windows.IsWindowVisible(h) {
			continue
		}
		if t := windowText(h); t != "" {
			out = append(out, &user32Window{hwnd: h, title: t})
		}
	}
	return out, nil
}

func (user32Windows) Active() (desktop.Window, error) {
	h := windows.GetForegroundWindow()
	if h == 0 {
		return nil, desktop.ErrNoWindow
	}
	return &user32Window{hwnd: h, title: windowText(h)}, nil
}

func windowText(h windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

type user32Window struct {
	hwnd  windows.HWND
	title string
}

type point struct{ X, Y int32 }

func (w *user32Window) Title() string { return w.title }

func (w *user32Window) Bounds() (coords.Rect, error) {
	var r windows.Rect
	if ret, _, err := procGetWindowRect.Call(uintptr(w.hwnd), uintptr(unsafe.Pointer(&r))); ret == 0 {
		return coords.Rect{}, apperrors.Wrapf(err, apperrors.WindowNotFound, "GetWindowRect %q", w.title)
	}
	return coords.Rect{X: int(r.Left), Y: int(r.Top), W: int(r.Right - r.Left), H: int(r.Bottom - r.Top)}, nil
}

func (w *user32Window) ClientRect() (coords.Rect, error) {
	var r windows.Rect
	if ret, _, err := procGetClientRect.Call(uintptr(w.hwnd), uintptr(unsafe.Pointer(&r))); ret == 0 {
		return coords.Rect{}, apperrors.Wrapf(err, apperrors.WindowNotFound, "GetClientRect %q", w.title)
	}
	var origin point
	if ret, _, err := procClientToScreen.Call(uintptr(w.hwnd), uintptr(unsafe.Pointer(&origin))); ret == 0 {
		return coords.Rect{}, apperrors.Wrapf(err, apperrors.WindowNotFound, "ClientToScreen %q", w.title)
	}
	return coords.Rect{X: int(origin.X), Y: int(origin.Y), W: int(r.Right - r.Left), H: int(r.Bottom - r.Top)}, nil
}

func (w *user32Window) Activate() error {
	if iconic, _, _ := procIsIconic.Call(uintptr(w.hwnd)); iconic != 0 {
		procShowWindow.Call(uintptr(w.hwnd), swRestore)
	}
	if ret, _, err := procSetForegroundWindow.Call(uintptr(w.hwnd)); ret == 0 {
		return apperrors.Wrapf(err, apperrors.WindowNotFound, "SetForegroundWindow %q", w.title)
	}
	return nil
}

func (w *user32Window) Close() error {
	if ret, _, err := procPostMessageW.Call(uintptr(w.hwnd), wmClose, 0, 0); ret == 0 {
		return apperrors.Wrapf(err, apperrors.WindowNotFound, "WM_CLOSE %q", w.title)
	}
	return nil
}
