// Package server exposes the agent status over HTTP and WebSocket.
package server

import "time"

const (
	// DefaultTransitionLimit is used when /api/transitions has no limit.
	DefaultTransitionLimit = 50
	// MaxLimit caps the limit query parameter.
	MaxLimit = 500

	// WriteTimeout bounds a single WebSocket write to a slow client.
	WriteTimeout = 5 * time.Second

	ReadHeaderTimeout = 5 * time.Second
	ShutdownTimeout   = 5 * time.Second
)
