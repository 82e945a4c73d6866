// Package constants defines subsystem-wide constants for timeouts, limits,
// and durations.
package constants

import "time"

// Call lifecycle constants
const (
	// RingTimeout is how long a call may stay in the ringing state before
	// the caller's client auto-ends it. The signaling protocol itself has
	// no timeout; this is enforced locally.
	RingTimeout = 45 * time.Second

	// DurationTickInterval is the local elapsed-time tick for connected
	// calls. Never resynchronized against server timestamps.
	DurationTickInterval = 1 * time.Second

	// HangupNavigationDelay is how long the ended state is held before the
	// shell navigates away, so the "call ended" notice can render.
	HangupNavigationDelay = 2 * time.Second

	// TeardownTimeout bounds the best-effort remote cleanup writes that run
	// when a call ends or the client is torn down.
	TeardownTimeout = 5 * time.Second
)

// Store operation constants
const (
	// StoreTimeout is the default timeout for single document operations.
	StoreTimeout = 10 * time.Second

	// WatchBuffer is the buffer size of subscription notification channels.
	// A slow consumer drops intermediate snapshots rather than blocking the
	// store adapter; only the latest state matters to the engine.
	WatchBuffer = 16
)

// Chat constants
const (
	// MaxChatMessageLength caps a single embedded chat message.
	MaxChatMessageLength = 2000
)

// Gateway constants
const (
	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single outbound frame write.
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Presence constants
const (
	// PresenceTTL is how long a presence heartbeat stays valid.
	PresenceTTL = 5 * time.Minute
)
