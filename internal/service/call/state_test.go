package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"telecare-calling/internal/domain"
)

func ringingState(role domain.Role) *callState {
	return &callState{
		phase:             StateRinging,
		role:              role,
		self:              "alice",
		peer:              "bob",
		callType:          domain.CallTypeVideo,
		status:            domain.CallStatusRinging,
		appliedCandidates: make(map[string]bool),
	}
}

func sessionWith(status domain.CallStatus) *domain.CallSession {
	return &domain.CallSession{
		ID:           "call-1",
		Participants: [2]string{"alice", "bob"},
		Type:         domain.CallTypeVideo,
		Status:       status,
		Initiator:    "alice",
	}
}

func TestReduceConnectsOnAccepted(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	acts := reduceSession(st, sessionWith(domain.CallStatusAccepted))

	assert.True(t, acts.Connected)
	assert.Equal(t, StateConnected, st.phase)
	assert.False(t, st.ringing())
}

func TestReduceIgnoresDuplicateStatus(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	reduceSession(st, sessionWith(domain.CallStatusAccepted))
	acts := reduceSession(st, sessionWith(domain.CallStatusAccepted))

	assert.False(t, acts.Connected)
	assert.Equal(t, StateConnected, st.phase)
}

func TestReduceIgnoresRegressingStatus(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	acts := reduceSession(st, sessionWith(domain.CallStatusEnded))
	assert.True(t, acts.Teardown)
	assert.Equal(t, StateEnded, st.phase)

	// A stale accepted snapshot delivered after the end must not revive the
	// call.
	acts = reduceSession(st, sessionWith(domain.CallStatusAccepted))
	assert.False(t, acts.Connected)
	assert.Equal(t, StateEnded, st.phase)
}

func TestReduceRejectedIsTerminal(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	acts := reduceSession(st, sessionWith(domain.CallStatusRejected))

	assert.True(t, acts.Teardown)
	assert.Equal(t, domain.CallStatusRejected, acts.Terminal)
	assert.Equal(t, StateRejected, st.phase)
}

func TestReduceCalleeConsumesOfferOnce(t *testing.T) {
	st := ringingState(domain.RoleCallee)

	session := sessionWith(domain.CallStatusRinging)
	session.Offer = &domain.SessionDescription{Type: "offer", SDP: "sdp"}

	acts := reduceSession(st, session)
	assert.NotNil(t, acts.ApplyOffer)

	acts = reduceSession(st, session)
	assert.Nil(t, acts.ApplyOffer, "offer must be applied at most once")
}

func TestReduceCallerConsumesAnswerOnce(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	session := sessionWith(domain.CallStatusAccepted)
	session.Answer = &domain.SessionDescription{Type: "answer", SDP: "sdp"}

	acts := reduceSession(st, session)
	assert.NotNil(t, acts.ApplyAnswer)

	acts = reduceSession(st, session)
	assert.Nil(t, acts.ApplyAnswer)
}

func TestReduceCallerIgnoresOffer(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	session := sessionWith(domain.CallStatusRinging)
	session.Offer = &domain.SessionDescription{Type: "offer", SDP: "sdp"}

	acts := reduceSession(st, session)
	assert.Nil(t, acts.ApplyOffer, "the caller never applies its own offer")
}

func TestReduceNilSessionIsRemoteEnd(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	acts := reduceSession(st, nil)

	assert.True(t, acts.Teardown)
	assert.Equal(t, domain.CallStatusEnded, acts.Terminal)
	assert.Equal(t, StateEnded, st.phase)

	// Idempotent on repeat delivery.
	acts = reduceSession(st, nil)
	assert.False(t, acts.Teardown)
}

func TestReduceReplacesTranscript(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	session := sessionWith(domain.CallStatusRinging)
	session.Messages = []domain.ChatMessage{
		{Sender: "bob", Content: "hello", SentAt: time.Now()},
	}

	acts := reduceSession(st, session)
	assert.True(t, acts.TranscriptChanged)
	assert.Len(t, st.messages, 1)

	acts = reduceSession(st, session)
	assert.False(t, acts.TranscriptChanged)
}

func TestFreshCandidatesFiltersEchoAndDuplicates(t *testing.T) {
	st := ringingState(domain.RoleCaller)

	batch := []domain.IceCandidate{
		{ID: "c1", From: "alice", Payload: "mine"},
		{ID: "c2", From: "bob", Payload: "theirs"},
	}

	fresh := freshCandidates(st, batch)
	assert.Len(t, fresh, 1)
	assert.Equal(t, "theirs", fresh[0].Payload)

	// Full-set redelivery yields nothing new.
	fresh = freshCandidates(st, batch)
	assert.Empty(t, fresh)

	// A genuinely new candidate in a later batch still comes through.
	batch = append(batch, domain.IceCandidate{ID: "c3", From: "bob", Payload: "more"})
	fresh = freshCandidates(st, batch)
	assert.Len(t, fresh, 1)
	assert.Equal(t, "more", fresh[0].Payload)
}

func TestRingingOnlyForRingingCaller(t *testing.T) {
	caller := ringingState(domain.RoleCaller)
	assert.True(t, caller.ringing())

	callee := ringingState(domain.RoleCallee)
	assert.False(t, callee.ringing())

	caller.phase = StateConnected
	assert.False(t, caller.ringing())
}
