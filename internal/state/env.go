package state

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/pixel"
	"github.com/cheminotify/agent/internal/popup"
	"github.com/cheminotify/agent/internal/resilience"
	"github.com/cheminotify/agent/internal/trace"
)

// Popups detects and dismisses dialogs. *popup.Detector implements it.
type Popups interface {
	DetectAfter(ctx context.Context, action func() error, opts popup.DetectOptions) (popup.Result, error)
	ScanActive(ctx context.Context) int
}

// Notifier delivers the availability alert. *notify.Facade implements it.
type Notifier interface {
	Send(ctx context.Context, subject, body, attachment string) bool
}

// Shots saves screenshots. *screen.Store implements it.
type Shots interface {
	SaveWindow(ctx context.Context, name string, win desktop.Window) (string, error)
	SaveActive(ctx context.Context, name string, ws desktop.Windows) (string, error)
}

// Checks records availability checks. *history.Recorder implements it.
type Checks interface {
	CourseChecked(ctx context.Context, course string, available bool)
}

// Credentials are typed into the login window.
type Credentials struct {
	Username string
	Password string
}

// Env carries what every state needs. One Env is shared by the states of a
// session; it holds no per-session data.
type Env struct {
	Desktop  *desktop.Desktop
	Mapper   *coords.Mapper
	Matcher  *pixel.Matcher
	Popups   Popups
	Notifier Notifier

	// Shots takes diagnostic screenshots; it is expected to be a no-op
	// outside debug mode. Evidence, when set, takes the screenshot attached
	// to the availability alert. Both may be nil.
	Shots    Shots
	Evidence Shots
	Checks   Checks

	Credentials   Credentials
	JNLPPath      string
	CourseCode    string
	RetryInterval time.Duration

	// FocusRetry bounds the attempts to find and activate a window.
	FocusRetry resilience.RetryConfig
	// PixelAttempts and PixelRetryDelay override the pixel matcher defaults
	// when positive.
	PixelAttempts   int
	PixelRetryDelay time.Duration

	// Wait pauses between UI steps. It reports whether the full duration
	// elapsed. Defaults to a context-aware sleep.
	Wait func(ctx context.Context, d time.Duration) bool
	// Now stamps notifications. Defaults to time.Now.
	Now func() time.Time
}

func (e *Env) wait(ctx context.Context, d time.Duration) bool {
	if e.Wait != nil {
		return e.Wait(ctx, d)
	}
	return sleep(ctx, d)
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger(ctx context.Context, id ID) *slog.Logger {
	return trace.Logger(ctx).With("component", "state", "state", id.String())
}

// Focus finds the first window whose title contains one of titles (compared
// normalized, in the order given), activates it and returns it. Missing
// windows are retried with backoff.
func (e *Env) Focus(ctx context.Context, titles ...string) (desktop.Window, error) {
	want := make([]string, len(titles))
	for i, t := range titles {
		want[i] = popup.Normalize(t)
	}

	win, err := resilience.RetryWithResult(ctx, e.FocusRetry, func() (desktop.Window, error) {
		list, err := e.Desktop.Windows.List()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.WindowNotFound, "list windows")
		}
		for _, t := range want {
			for _, w := range list {
				if t == "" || !strings.Contains(popup.Normalize(w.Title()), t) {
					continue
				}
				if err := w.Activate(); err != nil {
					return nil, apperrors.Wrapf(err, apperrors.WindowNotFound, "activate %q", w.Title())
				}
				return w, nil
			}
		}
		return nil, apperrors.New(apperrors.WindowNotFound, "no window matches").
			WithMetadata("titles", strings.Join(titles, "|"))
	})
	if err != nil {
		trace.Logger(ctx).Warn("could not focus window", "titles", titles, "error", err)
		e.errorShot(ctx, "window_focus_failed")
		return nil, err
	}
	e.wait(ctx, focusSettle)
	return win, nil
}

// Click presses a logical point of win. With no window the point is resolved
// against the foreground window.
func (e *Env) Click(win desktop.Window, p coords.Point, ref coords.RefID) error {
	abs, err := e.resolve(win, p, ref)
	if err != nil {
		return err
	}
	return e.Desktop.Input.Click(abs)
}

// MoveTo hovers a logical point of win.
func (e *Env) MoveTo(win desktop.Window, p coords.Point, ref coords.RefID, d time.Duration) error {
	abs, err := e.resolve(win, p, ref)
	if err != nil {
		return err
	}
	return e.Desktop.Input.MoveTo(abs, d)
}

func (e *Env) resolve(win desktop.Window, p coords.Point, ref coords.RefID) (coords.Point, error) {
	if win == nil {
		active, err := e.Desktop.Windows.Active()
		if err != nil {
			return coords.Point{}, apperrors.Wrap(err, apperrors.WindowNotFound, "no window to click in")
		}
		win = active
	}
	return e.Mapper.Resolve(p, ref, win)
}

// Matches runs a pixel check with the env's attempt overrides.
func (e *Env) Matches(ctx context.Context, win desktop.Window, name string, p coords.Point, colors []pixel.Color, tol int) bool {
	return e.Matcher.Matches(ctx, win, pixel.Check{
		Name:        name,
		Point:       p,
		Ref:         refMain,
		Colors:      colors,
		Tolerance:   tol,
		MaxAttempts: e.PixelAttempts,
		RetryDelay:  e.PixelRetryDelay,
	})
}

// Screenshot saves a diagnostic capture of the foreground window and
// returns its path, or "" when none was written.
func (e *Env) Screenshot(ctx context.Context, name string) string {
	if e.Shots == nil {
		return ""
	}
	path, err := e.Shots.SaveActive(ctx, name, e.Desktop.Windows)
	if err != nil {
		trace.Logger(ctx).Debug("screenshot failed", "name", name, "error", err)
		return ""
	}
	return path
}

func (e *Env) errorShot(ctx context.Context, name string) string {
	return e.Screenshot(ctx, "ERROR_"+name)
}

// evidence captures win for the availability alert.
func (e *Env) evidence(ctx context.Context, name string, win desktop.Window) string {
	store := e.Evidence
	if store == nil {
		store = e.Shots
	}
	if store == nil {
		return ""
	}
	var (
		path string
		err  error
	)
	if win != nil {
		path, err = store.SaveWindow(ctx, name, win)
	} else {
		path, err = store.SaveActive(ctx, name, e.Desktop.Windows)
	}
	if err != nil {
		trace.Logger(ctx).Warn("screenshot failed", "name", name, "error", err)
		return ""
	}
	return path
}

// typeSlowly types s one character at a time. The client drops keystrokes
// that arrive faster.
func (e *Env) typeSlowly(ctx context.Context, s string) error {
	for _, r := range s {
		if err := e.Desktop.Input.Type(string(r)); err != nil {
			return err
		}
		if !e.wait(ctx, keystrokePace) {
			return ctx.Err()
		}
	}
	return nil
}
