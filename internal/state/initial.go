package state

import (
	"context"
	"strings"

	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/layout"
)

// initialState starts from a clean desktop and launches the client.
type initialState struct{ env *Env }

func (s *initialState) ID() ID { return Initial }

// Detect always holds: a session can start from any desktop.
func (s *initialState) Detect(context.Context) bool { return true }

func (s *initialState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Initial)

	log.Info("closing leftover windows")
	if n := s.closeLeftovers(ctx); n > 0 {
		log.Info("closed leftover windows", "count", n)
	}
	s.env.wait(ctx, cleanupSettle)

	if s.env.JNLPPath == "" {
		return None, apperrors.New(apperrors.ConfigMissing, "JNLP file not set")
	}
	log.Info("launching client", "jnlp", s.env.JNLPPath)
	if err := s.env.Desktop.Launcher.Open(s.env.JNLPPath); err != nil {
		return None, apperrors.Wrapf(err, apperrors.LaunchFailed, "open %s", s.env.JNLPPath)
	}
	if !s.env.wait(ctx, launchWait) {
		return None, ctx.Err()
	}

	win, err := s.env.Focus(ctx, layout.LoginTitle)
	if err != nil {
		return None, apperrors.Wrap(err, apperrors.WindowNotFound, "login window did not appear after launch")
	}
	log.Info("client window found", "title", win.Title())
	return Login, nil
}

// closeLeftovers closes windows a previous session left behind.
func (s *initialState) closeLeftovers(ctx context.Context) int {
	log := s.env.logger(ctx, Initial)
	list, err := s.env.Desktop.Windows.List()
	if err != nil {
		log.Warn("listing windows failed", "error", err)
		return 0
	}
	closed := 0
	for _, w := range list {
		title := strings.ToLower(w.Title())
		if !containsAny(title, layout.UnwantedTitles) || containsAny(title, layout.ExemptTitles) {
			continue
		}
		log.Info("closing window", "title", w.Title())
		if err := w.Close(); err != nil {
			log.Warn("close failed", "title", w.Title(), "error", err)
			continue
		}
		closed++
	}
	return closed
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
