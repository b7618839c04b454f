package orchestrator

import "time"

const (
	// DefaultInterStateDelay separates two state handlers.
	DefaultInterStateDelay = 1 * time.Second

	// DefaultCooldown separates two sessions.
	DefaultCooldown = 5 * time.Second

	// ExitGraceTimeout bounds the EXIT handler run after shutdown was requested.
	ExitGraceTimeout = 30 * time.Second

	// Journal sizing
	JournalMaxEntries  = 200
	JournalEventBuffer = 100
)
