package domain

import (
	"time"
)

// CallType distinguishes audio-only consultations from video consultations.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// Valid reports whether t is a known call type.
func (t CallType) Valid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

// CallStatus is the lifecycle state of a call session as stored in the
// shared document. Values are part of the wire format; keep them stable.
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusAccepted CallStatus = "accepted"
	CallStatusEnded    CallStatus = "ended"
	CallStatusRejected CallStatus = "rejected"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. The full matrix is:
//
//	ringing  -> accepted | ended | rejected
//	accepted -> ended
//
// Everything else, including duplicate delivery of the current status, is
// rejected so the state machine can ignore stale snapshots.
func (s CallStatus) CanTransition(next CallStatus) bool {
	switch s {
	case CallStatusRinging:
		return next == CallStatusAccepted || next == CallStatusEnded || next == CallStatusRejected
	case CallStatusAccepted:
		return next == CallStatusEnded
	default:
		return false
	}
}

// Terminal reports whether s is a final state.
func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusRejected
}

// Role identifies which side of the call the local client plays. It is
// resolved once during entry-point resolution and carried through the whole
// state machine instead of being re-derived from id comparisons.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// SessionDescription is one half of the media-negotiation handshake.
// SDP is treated as an opaque payload owned by the media engine.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ChatMessage is one entry in the call's embedded chat transcript.
type ChatMessage struct {
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// IceCandidate is one discovered network path relayed through the per-call
// candidate channel. Payload is the engine's serialized candidate init and
// is never interpreted by this subsystem.
type IceCandidate struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Payload string `json:"payload"`
}

// CallSession is the authoritative record of one call attempt, jointly
// owned by both participants for the duration of the call.
type CallSession struct {
	ID             string
	Participants   [2]string
	Type           CallType
	Status         CallStatus
	Initiator      string
	Offer          *SessionDescription
	Answer         *SessionDescription
	CreatedAt      time.Time
	AcceptedAt     *time.Time
	EndedAt        *time.Time
	Duration       int
	Messages       []ChatMessage
	ConversationID string
}

// Callee returns the participant that did not initiate the call.
func (s *CallSession) Callee() string {
	if s.Participants[0] == s.Initiator {
		return s.Participants[1]
	}
	return s.Participants[0]
}

// HasParticipant reports whether userID is one of the two parties.
func (s *CallSession) HasParticipant(userID string) bool {
	return s.Participants[0] == userID || s.Participants[1] == userID
}

// SameParticipants reports whether the session is between exactly a and b,
// in either order.
func (s *CallSession) SameParticipants(a, b string) bool {
	return (s.Participants[0] == a && s.Participants[1] == b) ||
		(s.Participants[0] == b && s.Participants[1] == a)
}

// ActiveCallPointer marks a user as party to a live or ringing call. It is
// keyed by the receiving user's id, so at most one outstanding call exists
// per user. A leaked pointer makes the user permanently busy; every exit
// path must delete it.
type ActiveCallPointer struct {
	UserID       string
	CallID       string
	Participants [2]string
	Initiator    string
	Type         CallType
	CreatedAt    time.Time
}

// Matches reports whether the pointer refers to a call between exactly
// self and peer.
func (p *ActiveCallPointer) Matches(self, peer string) bool {
	return (p.Participants[0] == self && p.Participants[1] == peer) ||
		(p.Participants[0] == peer && p.Participants[1] == self)
}

// CallSummary is the terminal system notice posted back into the
// originating conversation when a call ends. This is the only write this
// subsystem makes into the persistent messaging feature.
type CallSummary struct {
	CallID       string     `json:"call_id"`
	Type         CallType   `json:"type"`
	Status       CallStatus `json:"status"`
	Initiator    string     `json:"initiator"`
	Duration     int        `json:"duration"`
	Participants [2]string  `json:"participants"`
}
