package orchestrator

import (
	"sync"
	"time"

	"github.com/cheminotify/agent/internal/state"
)

// Transition is one state change of a session.
type Transition struct {
	Time      time.Time     `json:"time"`
	SessionID string        `json:"session_id"`
	From      state.ID      `json:"from"`
	To        state.ID      `json:"to"`
	Iteration int           `json:"iteration"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// Journal keeps the most recent transitions in memory and publishes each new
// one on a buffered channel. Publishing never blocks the machine: when the
// consumer falls behind, events are dropped but stay in the ring.
type Journal struct {
	mu       sync.RWMutex
	entries  []Transition
	maxSize  int
	eventsCh chan Transition
}

// NewJournal creates a journal keeping maxEntries transitions.
func NewJournal(maxEntries, eventBuffer int) *Journal {
	if maxEntries <= 0 {
		maxEntries = JournalMaxEntries
	}
	return &Journal{
		entries:  make([]Transition, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Transition, eventBuffer),
	}
}

// Add stores t and emits it.
func (j *Journal) Add(t Transition) {
	j.mu.Lock()
	j.entries = append(j.entries, t)
	if len(j.entries) > j.maxSize {
		j.entries = j.entries[len(j.entries)-j.maxSize:]
	}
	j.mu.Unlock()
	j.Emit(t)
}

// Recent returns up to n transitions, newest last. n <= 0 returns all.
func (j *Journal) Recent(n int) []Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()
	start := 0
	if n > 0 && n < len(j.entries) {
		start = len(j.entries) - n
	}
	out := make([]Transition, len(j.entries)-start)
	copy(out, j.entries[start:])
	return out
}

// Events returns the channel transitions are published on.
func (j *Journal) Events() <-chan Transition {
	return j.eventsCh
}

// Emit publishes t without storing it (non-blocking).
func (j *Journal) Emit(t Transition) {
	select {
	case j.eventsCh <- t:
	default:
	}
}
