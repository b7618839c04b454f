package state

import (
	"context"

	"github.com/cheminotify/agent/internal/coords"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/pixel"
	"github.com/cheminotify/agent/internal/popup"
)

// tabActive reports whether a tab of the main window is selected.
func (e *Env) tabActive(ctx context.Context, name string, tab coords.Point, tol int) bool {
	win, err := e.Focus(ctx, layout.MainTitle)
	if err != nil {
		return false
	}
	return e.Matches(ctx, win, name, tab, layout.TabActive, tol)
}

// consultationState is the landing tab after login.
type consultationState struct{ env *Env }

func (s *consultationState) ID() ID { return Consultation }

func (s *consultationState) Detect(ctx context.Context) bool {
	return s.env.tabActive(ctx, "CONSULTATION_TAB", layout.TabConsultation, pixel.DefaultTolerance)
}

func (s *consultationState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Consultation)

	win, err := s.env.Focus(ctx, layout.MainTitle)
	if err != nil {
		log.Warn("main window not focused, continuing")
	}
	log.Info("switching to session registration tab")
	if err := s.env.Click(win, layout.TabInscriptionSession, refMain); err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click registration tab")
	}
	s.env.wait(ctx, tabSwitchWait)
	return Inscription, nil
}

// inscriptionState is the session registration tab.
type inscriptionState struct{ env *Env }

func (s *inscriptionState) ID() ID { return Inscription }

func (s *inscriptionState) Detect(ctx context.Context) bool {
	return s.env.tabActive(ctx, "INSCRIPTION_SESSION_TAB", layout.TabInscriptionSession, pixel.TabTolerance)
}

func (s *inscriptionState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Inscription)

	win, err := s.env.Focus(ctx, layout.MainTitle)
	if err != nil {
		log.Warn("main window not focused, continuing")
	}

	log.Info("opening course selection tab")
	res, err := s.env.Popups.DetectAfter(ctx, func() error {
		return s.env.Click(win, layout.TabSelectionCours, refMain)
	}, popup.DetectOptions{Timeout: inscriptionPopupTimeout, Ignore: []string{layout.MainTitle}})
	if err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click course selection tab")
	}
	if res.Found {
		log.Info("popup after opening course selection", "title", res.Title, "outcome", res.Outcome)
	}

	if n := s.env.Popups.ScanActive(ctx); n > 0 {
		log.Info("dismissed popups", "count", n)
	}
	s.env.wait(ctx, inscriptionSettle)
	return SelectionCourse, nil
}
