package pixel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultSettle      = 200 * time.Millisecond
)

// Check describes one pixel expectation.
type Check struct {
	Name        string
	Point       coords.Point
	Ref         coords.RefID
	Colors      []Color
	Tolerance   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Shots saves diagnostic screenshots of a window.
type Shots interface {
	SaveWindow(ctx context.Context, name string, win desktop.Window) (string, error)
}

// Matcher samples pixels inside windows.
type Matcher struct {
	mapper *coords.Mapper
	screen desktop.Screen
	shots  Shots
	settle time.Duration
	log    *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSettle sets the repaint delay between activating a window and sampling.
func WithSettle(d time.Duration) Option {
	return func(m *Matcher) { m.settle = d }
}

// NewMatcher creates a matcher. shots may be nil.
func NewMatcher(mapper *coords.Mapper, screen desktop.Screen, shots Shots, opts ...Option) *Matcher {
	m := &Matcher{
		mapper: mapper,
		screen: screen,
		shots:  shots,
		settle: DefaultSettle,
		log:    slog.Default().With("component", "pixel"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Sample reads the colour at a logical point of win.
func (m *Matcher) Sample(win desktop.Window, p coords.Point, ref coords.RefID) (c Color, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pixel: sample panicked: %v", r)
		}
	}()
	abs, err := m.mapper.Resolve(p, ref, win)
	if err != nil {
		return Color{}, err
	}
	rgba, err := m.screen.Pixel(abs)
	if err != nil {
		return Color{}, err
	}
	return FromRGBA(rgba), nil
}

// Matches reports whether the pixel described by chk matches any expected
// colour within MaxAttempts tries. It never returns an error; sampling
// failures consume an attempt.
func (m *Matcher) Matches(ctx context.Context, win desktop.Window, chk Check) bool {
	log := m.log.With("element", chk.Name, "point", chk.Point)
	if len(chk.Colors) == 0 {
		log.Error("no expected colours, cannot match")
		return false
	}
	if win == nil {
		log.Error("no window to sample")
		return false
	}
	attempts := chk.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := chk.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if err := activate(win); err != nil {
			log.Debug("activate failed", "error", err)
		}
		if !sleep(ctx, m.settle) {
			return false
		}

		c, err := m.Sample(win, chk.Point, chk.Ref)
		switch {
		case err != nil:
			log.Warn("pixel sample failed", "attempt", attempt, "max", attempts, "error", err)
		case c.MatchesAny(chk.Colors, chk.Tolerance):
			log.Debug("pixel matched", "color", c, "tolerance", chk.Tolerance)
			return true
		default:
			log.Warn("pixel mismatch", "attempt", attempt, "max", attempts,
				"color", c, "expected", chk.Colors, "tolerance", chk.Tolerance)
		}

		if attempt == attempts {
			m.diagnose(ctx, chk.Name, win)
			break
		}
		if !sleep(ctx, delay) {
			return false
		}
	}
	return false
}

// activate brings win to the foreground. Focus is best effort: a failure or
// panic only costs the attempt its repaint.
func activate(win desktop.Window) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pixel: activate panicked: %v", r)
		}
	}()
	return win.Activate()
}

func (m *Matcher) diagnose(ctx context.Context, name string, win desktop.Window) {
	if m.shots == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("diagnostic screenshot panicked", "element", name, "panic", r)
		}
	}()
	path, err := m.shots.SaveWindow(ctx, "pixel_mismatch_"+name, win)
	if err != nil {
		m.log.Warn("diagnostic screenshot failed", "element", name, "error", err)
		return
	}
	if path != "" {
		m.log.Info("saved pixel mismatch screenshot", "element", name, "path", path)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
