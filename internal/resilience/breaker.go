package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the position of a dependency's circuit.
type State uint32

const (
	Closed   State = iota // calls flow
	Open                  // calls are refused
	HalfOpen              // a trial call is allowed through
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half-open"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// Hook observes circuit changes. It runs on the goroutine whose call caused
// the change and must not block.
type Hook func(from, to State)

// Breaker guards one external dependency (the OCR service, a webhook) so a
// dead endpoint is skipped instead of retried on every automation tick.
type Breaker struct {
	name string
	cfg  Config
	log  *slog.Logger

	state       atomic.Uint32
	failures    atomic.Int32
	trials      atomic.Int32 // successes while half-open
	lastFailure atomic.Int64 // unix nano

	mu    sync.RWMutex
	hooks []Hook
}

// New creates a breaker for the named dependency.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
		log:  slog.Default().With("component", "breaker", "dependency", name),
	}
}

// Name returns the dependency name.
func (b *Breaker) Name() string { return b.name }

// WithHook adds fn to the observers of circuit changes.
func (b *Breaker) WithHook(fn Hook) *Breaker {
	if fn == nil {
		return b
	}
	b.mu.Lock()
	b.hooks = append(b.hooks, fn)
	b.mu.Unlock()
	return b
}

// State returns the current circuit position.
func (b *Breaker) State() State { return State(b.state.Load()) }

// Allow returns ErrOpen while the circuit refuses calls. Once ResetTimeout has
// passed since the last failure, the next caller goes through as a trial.
func (b *Breaker) Allow() error {
	if b.State() != Open {
		return nil
	}
	if !b.cooledDown() {
		return ErrOpen
	}
	b.moveTo(HalfOpen)
	return nil
}

// Success records a call that worked.
func (b *Breaker) Success() {
	switch b.State() {
	case Closed:
		b.failures.Store(0)
	case HalfOpen:
		if int(b.trials.Add(1)) >= b.cfg.HalfOpenSuccesses {
			b.moveTo(Closed)
		}
	}
}

// Failure records a call that failed. A failed trial reopens at once.
func (b *Breaker) Failure() {
	b.lastFailure.Store(time.Now().UnixNano())
	n := int(b.failures.Add(1))

	switch b.State() {
	case Closed:
		if n >= b.cfg.Threshold {
			b.moveTo(Open)
		}
	case HalfOpen:
		b.moveTo(Open)
	}
}

// Reset closes the circuit.
func (b *Breaker) Reset() { b.moveTo(Closed) }

func (b *Breaker) cooledDown() bool {
	last := b.lastFailure.Load()
	return last == 0 || time.Since(time.Unix(0, last)) > b.cfg.ResetTimeout
}

func (b *Breaker) moveTo(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}
	b.trials.Store(0)

	switch to {
	case Open:
		b.log.Warn("dependency unavailable, circuit opened",
			"failures", b.failures.Load(), "retry_after", b.cfg.ResetTimeout)
	case HalfOpen:
		b.log.Info("trying dependency again", "from", from)
	case Closed:
		b.failures.Store(0)
		b.log.Info("dependency recovered, circuit closed", "from", from)
	}

	b.mu.RLock()
	hooks := b.hooks
	b.mu.RUnlock()
	for _, h := range hooks {
		h(from, to)
	}
}

// Execute runs fn unless the circuit is open, recording its outcome.
func (b *Breaker) Execute(fn func() error) error {
	_, err := ExecuteWithResult(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult is Execute for calls that return a value.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return v, nil
}
