package history

import (
	"context"
	"sync"
	"time"

	"github.com/cheminotify/agent/internal/trace"
)

// Batcher defaults.
const (
	DefaultBatchMaxSize    = 50
	DefaultBatchFlushDelay = 2 * time.Second
)

// Writer stores a batch of events.
type Writer interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// Batcher accumulates events and writes them in batches, off the caller's
// goroutine. Events added after Stop are dropped.
type Batcher struct {
	w          Writer
	maxSize    int
	flushDelay time.Duration

	mu      sync.Mutex
	items   []Event
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewBatcher creates a batcher over w.
func NewBatcher(w Writer, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatchMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatchFlushDelay
	}
	return &Batcher{
		w:          w,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]Event, 0, maxSize),
	}
}

// Add queues an event.
func (b *Batcher) Add(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.items = append(b.items, e)
	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.items) == 0 {
		return
	}
	items := b.items
	b.items = make([]Event, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "history_batch_flush")
		defer span.End()
		span.SetAttr("count", len(items))

		if err := b.w.WriteBatch(ctx, items); err != nil {
			span.SetAttr("error", err.Error())
			trace.Logger(ctx).Warn("history batch write failed", "error", err, "count", len(items))
		}
	}()
}

// Flush forces an immediate write of pending events.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes what is pending and waits for in-flight writes.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.wg.Wait()
}
