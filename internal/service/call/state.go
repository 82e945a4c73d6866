// Package call implements the call state machine: the control logic that
// drives a consultation call through its lifecycle, reacting to local user
// commands and to remote state observed through store subscriptions. There
// is no server-side orchestrator; both participants converge purely through
// the shared session document and its change feed.
package call

import (
	"time"

	"telecare-calling/internal/domain"
)

// State is the local lifecycle phase of the call view.
type State string

const (
	StateIdle      State = "idle"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
	StateRejected  State = "rejected"
)

// Snapshot is the user-facing surface: everything the shell needs to render
// the call view. Copies are safe to retain.
type Snapshot struct {
	State      State                `json:"state"`
	Role       domain.Role          `json:"role"`
	CallID     string               `json:"call_id"`
	CallType   domain.CallType      `json:"call_type"`
	Peer       string               `json:"peer"`
	PeerOnline bool                 `json:"peer_online"`
	Elapsed    int                  `json:"elapsed"`
	Muted      bool                 `json:"muted"`
	CameraOff  bool                 `json:"camera_off"`
	Messages   []domain.ChatMessage `json:"messages"`
}

// callState is the full mutable state owned by the engine's event loop.
// Only the loop goroutine touches it after Start returns.
type callState struct {
	phase    State
	role     domain.Role
	callID   string
	callType domain.CallType
	self     string
	peer     string

	// status mirrors the last accepted session status; out-of-order or
	// duplicate snapshot deliveries that violate the transition matrix are
	// ignored against this value.
	status domain.CallStatus

	offerSent     bool
	answerSent    bool
	offerApplied  bool
	answerApplied bool

	appliedCandidates map[string]bool

	muted     bool
	cameraOff bool

	peerOnline     bool
	conversationID string
	messages       []domain.ChatMessage

	connectedAt time.Time
	elapsed     int
}

// actions is the effect set produced by reducing one session snapshot.
// The reducer itself performs no I/O, so it can be exercised with synthetic
// snapshots.
type actions struct {
	// Connected is set when the accepted status was first observed.
	Connected bool

	// ApplyOffer is non-nil when the callee should feed the remote offer to
	// the media engine (at most once per call).
	ApplyOffer *domain.SessionDescription

	// ApplyAnswer is non-nil when the caller should feed the remote answer
	// to the media engine (at most once per call).
	ApplyAnswer *domain.SessionDescription

	// Teardown is set when a terminal status was observed; Terminal carries
	// which one.
	Teardown bool
	Terminal domain.CallStatus

	// TranscriptChanged is set when the embedded chat array changed.
	TranscriptChanged bool
}

// reduceSession folds one observed session snapshot into the state. A nil
// session means the document was deleted out from under the call, which is
// treated as a remote end.
func reduceSession(st *callState, session *domain.CallSession) actions {
	var acts actions

	if session == nil {
		if st.phase != StateEnded && st.phase != StateRejected {
			st.phase = StateEnded
			acts.Teardown = true
			acts.Terminal = domain.CallStatusEnded
		}
		return acts
	}

	// Replace the local transcript with the received array. Document-level
	// last-writer-wins; appends go through array-union so concurrent
	// senders both land.
	if len(session.Messages) != len(st.messages) {
		st.messages = session.Messages
		acts.TranscriptChanged = true
	}
	if session.ConversationID != "" {
		st.conversationID = session.ConversationID
	}

	if session.Status != st.status && st.status.CanTransition(session.Status) {
		st.status = session.Status

		switch session.Status {
		case domain.CallStatusAccepted:
			if st.phase == StateRinging {
				st.phase = StateConnected
				acts.Connected = true
			}
		case domain.CallStatusEnded:
			st.phase = StateEnded
			acts.Teardown = true
			acts.Terminal = domain.CallStatusEnded
		case domain.CallStatusRejected:
			st.phase = StateRejected
			acts.Teardown = true
			acts.Terminal = domain.CallStatusRejected
		}
	}

	// Negotiation payloads are consumed exactly once per role: the callee
	// applies the offer, the caller applies the answer.
	if st.role == domain.RoleCallee && session.Offer != nil && !st.offerApplied {
		st.offerApplied = true
		acts.ApplyOffer = session.Offer
	}
	if st.role == domain.RoleCaller && session.Answer != nil && !st.answerApplied {
		st.answerApplied = true
		acts.ApplyAnswer = session.Answer
	}

	return acts
}

// freshCandidates filters one relay batch down to candidates that are new
// and not self-echo, marking them applied.
func freshCandidates(st *callState, batch []domain.IceCandidate) []domain.IceCandidate {
	var out []domain.IceCandidate
	for _, cand := range batch {
		if cand.From == st.self {
			continue
		}
		if st.appliedCandidates[cand.ID] {
			continue
		}
		st.appliedCandidates[cand.ID] = true
		out = append(out, cand)
	}
	return out
}

// snapshot renders the user-facing view of the current state.
func (st *callState) snapshot() Snapshot {
	messages := make([]domain.ChatMessage, len(st.messages))
	copy(messages, st.messages)

	return Snapshot{
		State:      st.phase,
		Role:       st.role,
		CallID:     st.callID,
		CallType:   st.callType,
		Peer:       st.peer,
		PeerOnline: st.peerOnline,
		Elapsed:    st.elapsed,
		Muted:      st.muted,
		CameraOff:  st.cameraOff,
		Messages:   messages,
	}
}

// ringing reports whether the ring cue should be audible: callers hear the
// ringback exactly while the session is still ringing.
func (st *callState) ringing() bool {
	return st.role == domain.RoleCaller && st.phase == StateRinging
}
