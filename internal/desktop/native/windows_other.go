//go:build !windows

package native

import (
	"github.com/go-vgo/robotgo"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
)

// NewWindows returns a process based window enumerator. It sees one window
// per process, which is enough for the single-window Java client.
func NewWindows() desktop.Windows { return procWindows{} }

type procWindows struct{}

func (procWindows) List() ([]desktop.Window, error) {
	procs, err := robotgo.Process()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "list processes")
	}
	out := make([]desktop.Window, 0, len(procs))
	for _, p := range procs {
		if t := robotgo.GetTitle(p.Pid); t != "" {
			out = append(out, &procWindow{pid: p.Pid, title: t})
		}
	}
	return out, nil
}

func (procWindows) Active() (desktop.Window, error) {
	pid := robotgo.GetPid()
	if pid <= 0 {
		return nil, desktop.ErrNoWindow
	}
	return &procWindow{pid: pid, title: robotgo.GetTitle(pid)}, nil
}

type procWindow struct {
	pid   int
	title string
}

func (w *procWindow) Title() string { return w.title }

func (w *procWindow) Bounds() (coords.Rect, error) {
	x, y, width, height := robotgo.GetBounds(w.pid)
	if width <= 0 || height <= 0 {
		return coords.Rect{}, apperrors.Newf(apperrors.WindowNotFound, "no bounds for %q", w.title)
	}
	return coords.Rect{X: x, Y: y, W: width, H: height}, nil
}

func (w *procWindow) ClientRect() (coords.Rect, error) {
	x, y, width, height := robotgo.GetClient(w.pid)
	if width <= 0 || height <= 0 {
		return coords.Rect{}, apperrors.Newf(apperrors.WindowNotFound, "no client area for %q", w.title)
	}
	return coords.Rect{X: x, Y: y, W: width, H: height}, nil
}

func (w *procWindow) Activate() error {
	if err := robotgo.ActivePid(w.pid); err != nil {
		return apperrors.Wrapf(err, apperrors.WindowNotFound, "activate %q", w.title)
	}
	return nil
}

func (w *procWindow) Close() error {
	robotgo.CloseWindow(w.pid)
	return nil
}
