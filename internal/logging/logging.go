// Package logging configures the process-wide slog logger: human-readable
// records on the console, JSON records in cheminotify.log and a second JSON
// file holding only errors.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	MainFile  = "cheminotify.log"
	ErrorFile = "error.log"
)

// ParseLevel maps a configured level name to a slog level. WARNING and
// CRITICAL are accepted as aliases.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates dir, builds the fan-out logger and installs it as the slog
// default. The returned func closes the log files.
func Setup(level, dir string, console io.Writer) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	mainLog, err := os.OpenFile(filepath.Join(dir, MainFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	errLog, err := os.OpenFile(filepath.Join(dir, ErrorFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = mainLog.Close()
		return nil, nil, err
	}

	lvl := ParseLevel(level)
	logger := slog.New(Fanout(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: lvl}),
		slog.NewJSONHandler(mainLog, &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}),
		slog.NewJSONHandler(errLog, &slog.HandlerOptions{Level: slog.LevelError, AddSource: true}),
	))
	slog.SetDefault(logger)

	closeFn := func() error {
		return errors.Join(mainLog.Close(), errLog.Close())
	}
	return logger, closeFn, nil
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

type fanout struct {
	handlers []slog.Handler
}

// Fanout returns a handler that forwards each record to every handler
// enabled for its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return &fanout{handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{handlers: hs}
}
