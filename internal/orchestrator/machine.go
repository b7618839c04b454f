// Package orchestrator drives automation sessions. A Machine runs the states
// of one session until a terminal state, the session timeout or shutdown; a
// Runner starts sessions back to back.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/state"
	"github.com/cheminotify/agent/internal/syncx"
	"github.com/cheminotify/agent/internal/trace"
)

// Reason tells why a session ended.
type Reason string

const (
	ReasonTerminal     Reason = "terminal"
	ReasonTimeout      Reason = "timeout"
	ReasonCancelled    Reason = "cancelled"
	ReasonUnregistered Reason = "unregistered"
	ReasonFailed       Reason = "failed"
)

// Recorder persists session events. *history.Recorder implements it.
type Recorder interface {
	SessionStarted(ctx context.Context, sessionID, course string)
	SessionEnded(ctx context.Context, sessionID, reason string, iterations int)
	Transition(ctx context.Context, sessionID, from, to string, iteration int, d time.Duration, err error)
}

// Screenshotter saves diagnostic captures. *state.Env implements it.
type Screenshotter interface {
	Screenshot(ctx context.Context, name string) string
}

// Options configure a Machine. The zero value is usable.
type Options struct {
	Initial         state.ID      // defaults to INITIAL
	Timeout         time.Duration // session lifetime; zero disables it
	InterStateDelay time.Duration // defaults to DefaultInterStateDelay; negative disables it
	Course          string        // recorded with the session

	Journal  *Journal
	Recorder Recorder
	Shots    Screenshotter
	Status   *syncx.RWGuard[Status]

	// Now is the session clock. Defaults to time.Now.
	Now func() time.Time
}

// Session is the bookkeeping of one run. It is owned by the Machine.
type Session struct {
	ID         string
	Start      time.Time
	Timeout    time.Duration
	Active     state.ID
	Iterations int
}

// Result summarizes a finished session.
type Result struct {
	SessionID  string
	Reason     Reason
	Last       state.ID
	Iterations int
	Duration   time.Duration
	Err        error
}

// Machine runs one session. It is not reusable.
type Machine struct {
	states state.Set
	opts   Options
}

// NewMachine creates a machine over a fresh set of states.
func NewMachine(states state.Set, opts Options) *Machine {
	if opts.Initial == state.None {
		opts.Initial = state.Initial
	}
	if opts.InterStateDelay == 0 {
		opts.InterStateDelay = DefaultInterStateDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{states: states, opts: opts}
}

// Run drives the session to its end. It never panics. Cancellation of ctx is
// observed between handlers: the running handler completes first, then EXIT
// is given a chance to close the client.
func (m *Machine) Run(ctx context.Context) Result {
	tc := trace.New()
	ctx = trace.WithContext(ctx, tc)
	log := trace.Logger(ctx).With("component", "orchestrator")

	sess := &Session{
		ID:      tc.SessionID,
		Start:   m.opts.Now(),
		Timeout: m.opts.Timeout,
		Active:  m.opts.Initial,
	}
	res := Result{SessionID: sess.ID}
	var failure error

	log.Info("session started", "initial", sess.Active, "timeout", sess.Timeout)
	if m.opts.Recorder != nil {
		m.opts.Recorder.SessionStarted(ctx, sess.ID, m.opts.Course)
	}
	m.publish(sess, false)

	for {
		if ctx.Err() != nil {
			log.Info("shutdown requested", "state", sess.Active)
			res.Reason = ReasonCancelled
			m.gracefulExit(ctx, sess)
			break
		}

		if sess.Timeout > 0 {
			if elapsed := m.opts.Now().Sub(sess.Start); elapsed >= sess.Timeout {
				log.Info("session timeout reached, initiating EXIT",
					"elapsed", elapsed.Round(time.Second), "timeout", sess.Timeout)
				res.Reason = ReasonTimeout
				m.forceExit(ctx, sess)
				break
			}
		}

		st, ok := m.states[sess.Active]
		if !ok {
			log.Error("no handler for state", "state", sess.Active)
			m.screenshot(ctx, "invalid_state_"+sess.Active.String())
			res.Reason = ReasonUnregistered
			res.Err = apperrors.Newf(apperrors.StateUnregistered, "no handler for state %s", sess.Active)
			break
		}

		from := sess.Active
		next, err := m.step(ctx, sess, st)

		if from == state.Exit {
			res.Reason, res.Err = ReasonTerminal, err
			if failure != nil {
				res.Reason, res.Err = ReasonFailed, failure
			}
			break
		}

		if err != nil {
			log.Error("state handler failed", "state", from, "iteration", sess.Iterations, "error", err)
			m.screenshot(ctx, "exception_"+from.String())
			if _, ok := m.states[state.Exit]; ok {
				failure = err
				sess.Active = state.Exit
				m.publish(sess, false)
				continue
			}
			res.Reason = ReasonFailed
			res.Err = err
			break
		}

		if next == state.None {
			log.Info("reached terminal state", "state", from)
			res.Reason = ReasonTerminal
			break
		}

		log.Info("state transition", "from", from, "to", next)
		sess.Active = next
		m.publish(sess, false)

		if m.opts.InterStateDelay > 0 {
			sleep(ctx, m.opts.InterStateDelay)
		}
	}

	res.Last = sess.Active
	res.Iterations = sess.Iterations
	res.Duration = m.opts.Now().Sub(sess.Start)
	m.publish(sess, true)
	if m.opts.Recorder != nil {
		m.opts.Recorder.SessionEnded(ctx, sess.ID, string(res.Reason), res.Iterations)
	}
	log.Info("session ended", "reason", res.Reason, "last", res.Last,
		"iterations", res.Iterations, "duration", res.Duration.Round(time.Second))
	return res
}

// step runs one handler and records the transition it produced.
func (m *Machine) step(ctx context.Context, sess *Session, st state.State) (state.ID, error) {
	from := st.ID()
	ctx, span := trace.StartSpan(ctx, "state_"+from.String())
	span.SetAttr("iteration", sess.Iterations+1)

	start := m.opts.Now()
	next, err := safeHandle(ctx, st)
	elapsed := m.opts.Now().Sub(start)
	span.End()

	sess.Iterations++
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	trace.Logger(ctx).Debug("state handled", "span", span, "next", next)

	to := next
	if err != nil && from != state.Exit {
		to = state.Exit
	}
	m.record(ctx, sess, from, to, elapsed, err)
	return next, err
}

// forceExit runs EXIT once, when it is registered.
func (m *Machine) forceExit(ctx context.Context, sess *Session) {
	st, ok := m.states[state.Exit]
	if !ok {
		trace.Logger(ctx).Warn("no EXIT state registered")
		return
	}
	if sess.Active != state.Exit {
		m.record(ctx, sess, sess.Active, state.Exit, 0, nil)
		sess.Active = state.Exit
		m.publish(sess, false)
	}
	if _, err := m.step(ctx, sess, st); err != nil {
		trace.Logger(ctx).Error("forced EXIT failed", "error", err)
	}
}

// gracefulExit runs EXIT after shutdown was requested. Waits inside EXIT are
// bounded by ExitGraceTimeout instead of the cancelled context.
func (m *Machine) gracefulExit(ctx context.Context, sess *Session) {
	if _, ok := m.states[state.Exit]; !ok {
		return
	}
	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ExitGraceTimeout)
	defer cancel()
	m.forceExit(exitCtx, sess)
}

func (m *Machine) record(ctx context.Context, sess *Session, from, to state.ID, d time.Duration, err error) {
	t := Transition{
		Time:      m.opts.Now(),
		SessionID: sess.ID,
		From:      from,
		To:        to,
		Iteration: sess.Iterations,
		Duration:  d,
	}
	if err != nil {
		t.Error = err.Error()
	}
	if m.opts.Journal != nil {
		m.opts.Journal.Add(t)
	}
	if m.opts.Recorder != nil {
		m.opts.Recorder.Transition(ctx, sess.ID, from.String(), to.String(), sess.Iterations, d, err)
	}
}

func (m *Machine) publish(sess *Session, ended bool) {
	if m.opts.Status == nil {
		return
	}
	now := m.opts.Now()
	m.opts.Status.Write(func(s *Status) {
		s.SessionID = sess.ID
		s.SessionStart = sess.Start
		s.State = sess.Active
		s.Iteration = sess.Iterations
		s.Running = !ended
		s.UpdatedAt = now
	})
}

func (m *Machine) screenshot(ctx context.Context, name string) {
	if m.opts.Shots == nil {
		return
	}
	if path := m.opts.Shots.Screenshot(ctx, name); path != "" {
		trace.Logger(ctx).Info("saved error screenshot", "path", path)
	}
}

// safeHandle turns a handler panic into a HANDLER_FAILED error.
func safeHandle(ctx context.Context, st state.State) (next state.ID, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace.Logger(ctx).Error("state handler panicked", "state", st.ID(),
				slog.Any("panic", r), "stack", string(debug.Stack()))
			next = state.None
			err = apperrors.New(apperrors.HandlerFailed, fmt.Sprintf("%s panicked: %v", st.ID(), r))
		}
	}()
	return st.Handle(ctx)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
