package state

import (
	"context"

	"github.com/cheminotify/agent/internal/layout"
)

// exitState logs out and closes the client. It is handled at most once per
// session and always ends it.
type exitState struct{ env *Env }

func (s *exitState) ID() ID { return Exit }

// Detect never holds: EXIT is entered, not observed.
func (s *exitState) Detect(context.Context) bool { return false }

// Handle is best effort: missing windows are logged and skipped.
func (s *exitState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Exit)
	log.Info("closing the client")
	s.env.wait(ctx, exitGrace)

	if win, err := s.env.Focus(ctx, layout.MainTitle); err != nil {
		log.Warn("main window not found, skipping logout")
	} else {
		if err := s.env.Click(win, layout.TabQuitter, refMain); err != nil {
			log.Warn("click quit failed", "error", err)
		}
		s.env.wait(ctx, quitterWait)
	}

	if _, err := s.env.Focus(ctx, layout.LoginTitle); err != nil {
		log.Warn("login window not found, nothing to close")
	} else {
		if err := s.env.Desktop.Input.KeyTap("f4", "alt"); err != nil {
			log.Warn("alt+f4 failed", "error", err)
		}
		s.env.wait(ctx, closeWait)
	}

	log.Info("client closed")
	return None, nil
}
