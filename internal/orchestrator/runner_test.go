package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cheminotify/agent/internal/resilience"
	"github.com/cheminotify/agent/internal/state"
)

func TestRunnerBuildsFreshStatesPerSession(t *testing.T) {
	var built []*fakeState
	factory := func() state.Set {
		st := &fakeState{id: state.Initial, next: state.None}
		built = append(built, st)
		return set(st)
	}
	r := NewRunner(factory, Options{InterStateDelay: -1}, WithCooldown(0), WithMaxSessions(3))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("factory called %d times, want 3", len(built))
	}
	for i, st := range built {
		if st.calls != 1 {
			t.Errorf("session %d state calls = %d, want 1", i, st.calls)
		}
	}

	status := r.Status()
	if status.Sessions != 3 || status.LastReason != ReasonTerminal || status.Running {
		t.Errorf("Status() = %+v", status)
	}
	if got := len(r.Journal().Recent(0)); got != 3 {
		t.Errorf("journal has %d transitions, want 3", got)
	}
}

func TestRunnerReturnsLastErrorAtLimit(t *testing.T) {
	boom := errors.New("boom")
	factory := func() state.Set {
		return set(&fakeState{id: state.Initial, err: boom})
	}
	r := NewRunner(factory, Options{InterStateDelay: -1}, WithCooldown(0), WithMaxSessions(1))

	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
	if r.Status().LastError == "" {
		t.Error("Status() should carry the last error")
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := 0
	factory := func() state.Set {
		sessions++
		return set(&fakeState{id: state.Initial, next: state.None})
	}
	r := NewRunner(factory, Options{InterStateDelay: -1}, WithCooldown(time.Hour))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if sessions != 1 {
		t.Errorf("sessions = %d, want 1 (cooldown interrupted)", sessions)
	}
}

func TestRunnerWatchReportsCircuitState(t *testing.T) {
	r := NewRunner(func() state.Set { return nil }, Options{})
	ocr := resilience.New("ocr", resilience.Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	discord := resilience.New("discord", resilience.WebhookConfig())

	r.Watch(ocr)
	r.Watch(discord)
	before := r.Status()

	ocr.Failure()

	after := r.Status()
	if after.Dependencies["ocr"] != "open" || after.Dependencies["discord"] != "closed" {
		t.Errorf("Dependencies = %v, want ocr open and discord closed", after.Dependencies)
	}
	if before.Dependencies["ocr"] != "closed" {
		t.Errorf("earlier snapshot changed to %v", before.Dependencies)
	}

	ocr.Reset()
	if got := r.Status().Dependencies["ocr"]; got != "closed" {
		t.Errorf("after Reset ocr = %q, want closed", got)
	}
}
