package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCanTransition exercises the full status transition matrix
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    CallStatus
		to      CallStatus
		allowed bool
	}{
		{CallStatusRinging, CallStatusAccepted, true},
		{CallStatusRinging, CallStatusEnded, true},
		{CallStatusRinging, CallStatusRejected, true},
		{CallStatusRinging, CallStatusRinging, false},
		{CallStatusAccepted, CallStatusEnded, true},
		{CallStatusAccepted, CallStatusAccepted, false},
		{CallStatusAccepted, CallStatusRinging, false},
		{CallStatusAccepted, CallStatusRejected, false},
		{CallStatusEnded, CallStatusRinging, false},
		{CallStatusEnded, CallStatusAccepted, false},
		{CallStatusEnded, CallStatusEnded, false},
		{CallStatusRejected, CallStatusAccepted, false},
		{CallStatusRejected, CallStatusEnded, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, CallStatusRinging.Terminal())
	assert.False(t, CallStatusAccepted.Terminal())
	assert.True(t, CallStatusEnded.Terminal())
	assert.True(t, CallStatusRejected.Terminal())
}

func TestCallee(t *testing.T) {
	s := &CallSession{
		Participants: [2]string{"patient-1", "doctor-1"},
		Initiator:    "patient-1",
	}
	assert.Equal(t, "doctor-1", s.Callee())

	s.Initiator = "doctor-1"
	assert.Equal(t, "patient-1", s.Callee())
}

func TestSameParticipants(t *testing.T) {
	s := &CallSession{Participants: [2]string{"a", "b"}}

	assert.True(t, s.SameParticipants("a", "b"))
	assert.True(t, s.SameParticipants("b", "a"))
	assert.False(t, s.SameParticipants("a", "c"))
	assert.False(t, s.SameParticipants("c", "d"))
}

func TestPointerMatches(t *testing.T) {
	p := &ActiveCallPointer{
		UserID:       "b",
		CallID:       "call-1",
		Participants: [2]string{"a", "b"},
		Initiator:    "a",
	}

	assert.True(t, p.Matches("b", "a"))
	assert.True(t, p.Matches("a", "b"))
	assert.False(t, p.Matches("b", "c"))
}

func TestCallTypeValid(t *testing.T) {
	assert.True(t, CallTypeVoice.Valid())
	assert.True(t, CallTypeVideo.Valid())
	assert.False(t, CallType("screen").Valid())
}
