// Package notify delivers "course available" alerts to the operator.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Channel is one delivery route. Send reports whether the message got
// through; channels log their own failures and never retry beyond their
// transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body, attachment string) bool
}

// Facade fans a notification out to every registered channel.
type Facade struct {
	mu       sync.RWMutex
	channels []Channel
	log      *slog.Logger
}

// NewFacade creates a facade over channels.
func NewFacade(channels ...Channel) *Facade {
	return &Facade{
		channels: channels,
		log:      slog.Default().With("component", "notify"),
	}
}

// Register adds a channel at runtime.
func (f *Facade) Register(ch Channel) {
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
}

// Len returns the number of registered channels.
func (f *Facade) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.channels)
}

// SendAll sends to every channel concurrently and returns the per-channel
// result keyed by channel name.
func (f *Facade) SendAll(ctx context.Context, subject, body, attachment string) map[string]bool {
	f.mu.RLock()
	channels := append([]Channel(nil), f.channels...)
	f.mu.RUnlock()

	type result struct {
		name string
		ok   bool
	}
	p := pool.NewWithResults[result]()
	for _, ch := range channels {
		p.Go(func() result {
			return result{name: ch.Name(), ok: ch.Send(ctx, subject, body, attachment)}
		})
	}

	out := make(map[string]bool, len(channels))
	for _, r := range p.Wait() {
		out[r.name] = r.ok
	}
	return out
}

// Send reports whether at least one channel delivered the message.
func (f *Facade) Send(ctx context.Context, subject, body, attachment string) bool {
	results := f.SendAll(ctx, subject, body, attachment)
	if len(results) == 0 {
		f.log.Warn("no notification channel configured", "subject", subject)
		return false
	}
	delivered := false
	for name, ok := range results {
		if ok {
			delivered = true
		} else {
			f.log.Warn("notification channel failed", "channel", name, "subject", subject)
		}
	}
	return delivered
}
