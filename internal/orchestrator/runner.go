package orchestrator

import (
	"context"
	"maps"
	"time"

	"github.com/cheminotify/agent/internal/resilience"
	"github.com/cheminotify/agent/internal/state"
	"github.com/cheminotify/agent/internal/syncx"
	"github.com/cheminotify/agent/internal/trace"
)

// Status is a point-in-time view of the runner for the status server.
type Status struct {
	Running      bool      `json:"running"`
	SessionID    string    `json:"session_id,omitempty"`
	SessionStart time.Time `json:"session_start,omitempty"`
	State        state.ID  `json:"state,omitempty"`
	Iteration    int       `json:"iteration"`
	Sessions     int       `json:"sessions"`
	LastReason   Reason    `json:"last_reason,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	// Dependencies maps a guarded dependency to its circuit state. The map is
	// replaced, never mutated, so snapshots can share it.
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Factory builds the states of a new session.
type Factory func() state.Set

// Runner starts sessions one after the other until its context ends.
type Runner struct {
	factory     Factory
	opts        Options
	cooldown    time.Duration
	maxSessions int

	journal *Journal
	status  *syncx.RWGuard[Status]
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCooldown sets the pause between sessions.
func WithCooldown(d time.Duration) RunnerOption {
	return func(r *Runner) { r.cooldown = d }
}

// WithMaxSessions stops the runner after n sessions. Zero runs forever.
func WithMaxSessions(n int) RunnerOption {
	return func(r *Runner) { r.maxSessions = n }
}

// NewRunner creates a runner. opts are passed to every Machine; the journal
// and status guard are created when opts leaves them nil.
func NewRunner(factory Factory, opts Options, ropts ...RunnerOption) *Runner {
	if opts.Journal == nil {
		opts.Journal = NewJournal(JournalMaxEntries, JournalEventBuffer)
	}
	if opts.Status == nil {
		opts.Status = syncx.NewGuard(Status{})
	}
	r := &Runner{
		factory:  factory,
		opts:     opts,
		cooldown: DefaultCooldown,
		journal:  opts.Journal,
		status:   opts.Status,
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Journal returns the transition journal shared by all sessions.
func (r *Runner) Journal() *Journal { return r.journal }

// Status returns a snapshot of the current session.
func (r *Runner) Status() Status { return r.status.Get() }

// Watch reports the circuit state of b in Status and keeps it current.
func (r *Runner) Watch(b *resilience.Breaker) {
	r.setDependency(b.Name(), b.State())
	b.WithHook(func(_, to resilience.State) { r.setDependency(b.Name(), to) })
}

func (r *Runner) setDependency(name string, st resilience.State) {
	r.status.Write(func(s *Status) {
		deps := maps.Clone(s.Dependencies)
		if deps == nil {
			deps = make(map[string]string, 1)
		}
		deps[name] = st.String()
		s.Dependencies = deps
		s.UpdatedAt = time.Now()
	})
}

// Run loops sessions until ctx is done or the session limit is reached.
func (r *Runner) Run(ctx context.Context) error {
	log := trace.Logger(ctx).With("component", "runner")
	for n := 1; ; n++ {
		res := NewMachine(r.factory(), r.opts).Run(ctx)

		r.status.Write(func(s *Status) {
			s.Sessions = n
			s.LastReason = res.Reason
			s.LastError = ""
			if res.Err != nil {
				s.LastError = res.Err.Error()
			}
		})

		if ctx.Err() != nil {
			log.Info("runner stopped", "sessions", n)
			return nil
		}
		if r.maxSessions > 0 && n >= r.maxSessions {
			log.Info("session limit reached", "sessions", n)
			return res.Err
		}

		log.Info("starting next session", "cooldown", r.cooldown, "last_reason", res.Reason)
		if r.cooldown > 0 && !sleep(ctx, r.cooldown) {
			log.Info("runner stopped", "sessions", n)
			return nil
		}
	}
}
