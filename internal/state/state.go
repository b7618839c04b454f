// Package state implements the screens of the ChemiNot client as states of
// the session machine. Each state can tell whether the client currently shows
// it (Detect) and can drive the client one step further (Handle).
package state

import (
	"context"
	"time"
)

// ID names a state. The zero value None means "no further transition".
type ID string

const (
	None            ID = ""
	Initial         ID = "INITIAL"
	Login           ID = "LOGIN"
	Consultation    ID = "CONSULTATION"
	Inscription     ID = "INSCRIPTION"
	SelectionCourse ID = "SELECTION_COURSE"
	Schedule        ID = "SCHEDULE"
	Exit            ID = "EXIT"
)

var all = []ID{Initial, Login, Consultation, Inscription, SelectionCourse, Schedule, Exit}

// All lists every state in the order a session normally visits them.
func All() []ID { return append([]ID(nil), all...) }

// ParseID accepts a state name as printed by String.
func ParseID(s string) (ID, bool) {
	for _, id := range all {
		if string(id) == s {
			return id, true
		}
	}
	return None, false
}

func (id ID) String() string {
	if id == None {
		return "NONE"
	}
	return string(id)
}

// State is one screen of the client.
type State interface {
	ID() ID
	// Detect reports whether the client currently shows this state. It has
	// no side effects beyond focusing windows.
	Detect(ctx context.Context) bool
	// Handle performs the state's actions and returns the next state.
	Handle(ctx context.Context) (ID, error)
}

// Set is the states of one session keyed by id.
type Set map[ID]State

// NewSet builds a fresh instance of every state over env.
func NewSet(env *Env) Set {
	s := Set{}
	for _, st := range []State{
		&initialState{env: env},
		&loginState{env: env},
		&consultationState{env: env},
		&inscriptionState{env: env},
		&selectionCourseState{env: env},
		&scheduleState{env: env},
		&exitState{env: env},
	} {
		s[st.ID()] = st
	}
	return s
}

// Detect returns the first state in visiting order whose Detect reports true.
func (s Set) Detect(ctx context.Context) (ID, bool) {
	for _, id := range all {
		st, ok := s[id]
		if !ok || id == Initial {
			continue
		}
		if st.Detect(ctx) {
			return id, true
		}
	}
	return None, false
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
