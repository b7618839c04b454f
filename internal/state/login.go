package state

import (
	"context"
	"strings"
	"time"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/popup"
)

// loginState types the credentials into the login window.
type loginState struct{ env *Env }

func (s *loginState) ID() ID { return Login }

func (s *loginState) Detect(context.Context) bool {
	list, err := s.env.Desktop.Windows.List()
	if err != nil {
		return false
	}
	want := popup.Normalize(layout.LoginTitle)
	for _, w := range list {
		if strings.Contains(popup.Normalize(w.Title()), want) {
			return true
		}
	}
	return false
}

func (s *loginState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Login)

	win, err := s.env.Focus(ctx, layout.LoginTitle)
	if err != nil {
		log.Warn("login window not found, exiting")
		return Exit, nil
	}
	creds := s.env.Credentials
	if creds.Username == "" || creds.Password == "" {
		log.Error("credentials not set")
		return Exit, nil
	}

	log.Info("entering username")
	if err := s.fill(ctx, win, layout.UsernameField, creds.Username, fieldPacing{
		settle: usernameFieldSettle, selectAll: usernameSelectAll, clear: usernameDelete,
	}); err != nil {
		return None, err
	}
	s.env.wait(ctx, afterUsername)

	log.Info("entering password")
	if err := s.fill(ctx, win, layout.PasswordField, creds.Password, fieldPacing{
		settle: passwordFieldSettle, selectAll: passwordSelectAll, clear: passwordDelete,
	}); err != nil {
		return None, err
	}

	s.env.wait(ctx, beforeLoginClick)
	log.Info("submitting login")
	if err := s.env.Click(win, layout.LoginButton, refLogin); err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click login button")
	}
	s.env.wait(ctx, loginWait)

	if n := s.env.Popups.ScanActive(ctx); n > 0 {
		log.Info("dismissed popups after login", "count", n)
	}
	s.env.wait(ctx, afterLoginScan)
	return Consultation, nil
}

type fieldPacing struct {
	settle, selectAll, clear time.Duration
}

// fill replaces the content of a text field.
func (s *loginState) fill(ctx context.Context, win desktop.Window, field coords.Point, value string, p fieldPacing) error {
	in := s.env.Desktop.Input
	if err := s.env.Click(win, field, refLogin); err != nil {
		return apperrors.Wrap(err, apperrors.HandlerFailed, "click login field")
	}
	s.env.wait(ctx, p.settle)
	if err := in.KeyTap("a", "ctrl"); err != nil {
		return apperrors.Wrap(err, apperrors.HandlerFailed, "select field")
	}
	s.env.wait(ctx, p.selectAll)
	if err := in.KeyTap("delete"); err != nil {
		return apperrors.Wrap(err, apperrors.HandlerFailed, "clear field")
	}
	s.env.wait(ctx, p.clear)
	if err := s.env.typeSlowly(ctx, value); err != nil {
		return apperrors.Wrap(err, apperrors.HandlerFailed, "type into field")
	}
	return nil
}
