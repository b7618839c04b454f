package state

import (
	"context"
	"fmt"
	"time"

	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/pixel"
	"github.com/cheminotify/agent/internal/popup"
)

// selectionCourseState clicks the tracked course and reacts to the
// "course full" dialog.
type selectionCourseState struct{ env *Env }

func (s *selectionCourseState) ID() ID { return SelectionCourse }

func (s *selectionCourseState) Detect(ctx context.Context) bool {
	return s.env.tabActive(ctx, "SELECTION_COURS_TAB", layout.TabSelectionCours, pixel.TabTolerance)
}

func (s *selectionCourseState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, SelectionCourse).With("course", s.env.CourseCode)

	win, err := s.env.Focus(ctx, layout.MainTitle)
	if err != nil {
		log.Warn("main window not focused, continuing")
	}

	if err := s.env.Click(win, layout.TabSelectionCours, refMain); err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click course selection tab")
	}
	s.env.wait(ctx, selectionTabWait)

	button, ok := layout.CoursePoint(s.env.CourseCode)
	if !ok {
		log.Error("no button for course, exiting")
		return Exit, nil
	}

	ignore := []string{"CONSULTATION", layout.MainTitle}
	if win != nil {
		ignore = append(ignore, win.Title())
	}
	res, err := s.env.Popups.DetectAfter(ctx, func() error {
		return s.env.Click(win, button, refMain)
	}, popup.DetectOptions{Timeout: coursePopupTimeout, Ignore: ignore})
	if err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click course")
	}

	if res.Found {
		if courseFull(res) {
			log.Info("course full, retrying later", "wait", s.env.RetryInterval,
				"next", s.env.now().Add(s.env.RetryInterval).Format(time.TimeOnly))
			s.env.wait(ctx, s.env.RetryInterval)
			return SelectionCourse, nil
		}
		log.Warn("popup was not a course full message, proceeding", "title", res.Title, "outcome", res.Outcome)
		s.env.Screenshot(ctx, "popup_debug")
	}

	log.Info("no blocking popup, checking availability")
	return Schedule, nil
}

func courseFull(res popup.Result) bool {
	if res.Outcome == popup.CourseFull {
		return true
	}
	return containsAny(popup.Normalize(res.Text), courseFullMarkers)
}

// scheduleState reads the group pixel of the schedule tab and alerts the
// operator when a seat is open.
type scheduleState struct{ env *Env }

func (s *scheduleState) ID() ID { return Schedule }

func (s *scheduleState) Detect(ctx context.Context) bool {
	return s.env.tabActive(ctx, "HORAIRE_TAB", layout.TabHoraire, pixel.DefaultTolerance)
}

func (s *scheduleState) Handle(ctx context.Context) (ID, error) {
	log := s.env.logger(ctx, Schedule).With("course", s.env.CourseCode)

	win, err := s.env.Focus(ctx, layout.MainTitle)
	if err != nil {
		log.Warn("main window not focused, continuing")
		s.env.errorShot(ctx, "no_window_found")
	}

	shot := s.env.evidence(ctx, "before_pixel_check", win)

	if err := s.env.MoveTo(win, layout.GroupCoursePixel, refMain, hoverDuration); err != nil {
		log.Debug("hover group pixel failed", "error", err)
	}
	s.env.wait(ctx, hoverSettle)

	interval := s.env.RetryInterval
	switch {
	case s.env.Matches(ctx, win, "COURSE_AVAILABLE", layout.GroupCoursePixel, layout.CourseAvailable, pixel.DefaultTolerance):
		log.Info("course available, notifying")
		s.record(ctx, true)
		s.notify(ctx, shot)
		interval *= 2
	case s.env.Matches(ctx, win, "COURSE_UNAVAILABLE", layout.GroupCoursePixel, layout.CourseUnavailable, pixel.DefaultTolerance):
		log.Info("course not available")
		s.record(ctx, false)
	default:
		log.Warn("group pixel matches neither palette")
		s.record(ctx, false)
	}
	return s.retry(ctx, win, interval)
}

func (s *scheduleState) notify(ctx context.Context, attachment string) {
	if s.env.Notifier == nil {
		s.env.logger(ctx, Schedule).Warn("no notifier configured")
		return
	}
	body := fmt.Sprintf("%s is now available!\nDetected on %s",
		s.env.CourseCode, s.env.now().Format(detectedLayout))
	if !s.env.Notifier.Send(ctx, availableSubject, body, attachment) {
		s.env.logger(ctx, Schedule).Warn("availability notification not delivered")
	}
}

func (s *scheduleState) record(ctx context.Context, available bool) {
	if s.env.Checks != nil {
		s.env.Checks.CourseChecked(ctx, s.env.CourseCode, available)
	}
}

// retry returns to the course selection tab and waits before the next check.
func (s *scheduleState) retry(ctx context.Context, win desktop.Window, wait time.Duration) (ID, error) {
	s.env.logger(ctx, Schedule).Info("will retry", "wait", wait,
		"next", s.env.now().Add(wait).Format(time.TimeOnly))
	if err := s.env.Click(win, layout.TabSelectionCours, refMain); err != nil {
		return None, apperrors.Wrap(err, apperrors.HandlerFailed, "click course selection tab")
	}
	s.env.wait(ctx, selectionTabWait)
	s.env.wait(ctx, wait)
	return SelectionCourse, nil
}
