// Package media bridges the call state machine to the peer-to-peer media
// negotiation engine. It owns the local capture handles and the per-call
// negotiation endpoint; the state machine only sees the Controller
// interface.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"

	"telecare-calling/internal/domain"
)

// Controller is the per-call media surface the state machine drives.
// Descriptions and candidates are opaque payloads produced and consumed by
// the underlying engine.
type Controller interface {
	// CreateOffer produces the caller's half of the handshake. Local tracks
	// are attached before the offer is created.
	CreateOffer(ctx context.Context) (*domain.SessionDescription, error)

	// AcceptOffer applies the remote offer and produces the answer. Callee
	// side only; a second call fails since the remote description is
	// applied at most once.
	AcceptOffer(ctx context.Context, offer *domain.SessionDescription) (*domain.SessionDescription, error)

	// AcceptAnswer applies the remote answer. Caller side only, at most once.
	AcceptAnswer(ctx context.Context, answer *domain.SessionDescription) error

	// AddRemoteCandidate applies one relayed candidate. Failures are
	// expected background noise and must not abort the call.
	AddRemoteCandidate(payload string) error

	// OnLocalCandidate registers the sink for locally discovered
	// candidates. Must be set before negotiation starts.
	OnLocalCandidate(fn func(payload string))

	// SetMuted and SetCameraOff disable (not remove) the corresponding
	// local capture; local-only, non-persisted toggles.
	SetMuted(muted bool)
	SetCameraOff(off bool)

	// Close tears down the endpoint and releases the capture source.
	// Idempotent; runs on every exit path.
	Close() error
}

// Factory builds one Controller per call. Acquisition of capture devices
// happens here; a failure is fatal to call establishment.
type Factory interface {
	New(ctx context.Context, callType domain.CallType) (Controller, error)
}

// TrackSource is the capture device boundary. Implementations own the
// platform capture streams and must stop them on Close.
type TrackSource interface {
	// AudioTrack and VideoTrack return the local tracks, or nil when the
	// kind was not captured (voice calls have no video track).
	AudioTrack() webrtc.TrackLocal
	VideoTrack() webrtc.TrackLocal

	// SetAudioEnabled and SetVideoEnabled gate sample delivery without
	// releasing the device.
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)

	// Close stops all capture tracks.
	Close() error
}

// SourceFactory acquires capture devices for one call.
type SourceFactory interface {
	Acquire(ctx context.Context, callType domain.CallType) (TrackSource, error)
}
