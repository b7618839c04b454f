package history

import (
	"context"
	"time"

	"github.com/cheminotify/agent/internal/popup"
	"github.com/cheminotify/agent/internal/trace"
)

// Recorder turns automation callbacks into events. A nil *Recorder records
// nothing.
type Recorder struct {
	b   *Batcher
	now func() time.Time
}

// NewRecorder creates a recorder writing through b.
func NewRecorder(b *Batcher) *Recorder {
	return &Recorder{b: b, now: time.Now}
}

func (r *Recorder) add(e Event) {
	if r == nil || r.b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.b.Add(e)
}

// SessionStarted records the start of a session.
func (r *Recorder) SessionStarted(_ context.Context, sessionID, course string) {
	r.add(Event{Kind: SessionStart, SessionID: sessionID, Course: course})
}

// SessionEnded records why a session stopped.
func (r *Recorder) SessionEnded(_ context.Context, sessionID, reason string, iterations int) {
	r.add(Event{Kind: SessionEnd, SessionID: sessionID, Reason: reason, Iterations: iterations})
}

// Transition records one handled state.
func (r *Recorder) Transition(_ context.Context, sessionID, from, to string, iteration int, d time.Duration, err error) {
	e := Event{Kind: Transition, SessionID: sessionID, From: from, To: to, Iteration: iteration, Duration: d}
	if err != nil {
		e.Error = err.Error()
	}
	r.add(e)
}

// PopupHandled implements popup.Observer.
func (r *Recorder) PopupHandled(ctx context.Context, title, text string, outcome popup.Outcome, action popup.Action) {
	r.add(Event{
		Kind:      Popup,
		SessionID: trace.SessionID(ctx),
		Title:     title,
		Text:      text,
		Outcome:   string(outcome),
		Action:    string(action),
	})
}

// CourseChecked records an availability check.
func (r *Recorder) CourseChecked(ctx context.Context, course string, available bool) {
	r.add(Event{Kind: Check, SessionID: trace.SessionID(ctx), Course: course, Available: available})
}

var _ popup.Observer = (*Recorder)(nil)
