package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"telecare-calling/internal/domain"
)

type mockCallStore struct {
	mock.Mock
}

func (m *mockCallStore) Insert(ctx context.Context, session *domain.CallSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

type mockTranscriptStore struct {
	mock.Mock
}

func (m *mockTranscriptStore) Save(callID string, messages []domain.ChatMessage) error {
	args := m.Called(callID, messages)
	return args.Error(0)
}

func endedSession() *domain.CallSession {
	endedAt := time.Now()
	return &domain.CallSession{
		ID:           "call-1",
		Participants: [2]string{"alice", "bob"},
		Type:         domain.CallTypeVideo,
		Status:       domain.CallStatusEnded,
		Initiator:    "alice",
		CreatedAt:    endedAt.Add(-time.Minute),
		EndedAt:      &endedAt,
		Duration:     42,
		Messages: []domain.ChatMessage{
			{Sender: "alice", Content: "hello", SentAt: endedAt},
		},
	}
}

func TestArchiveCallWritesBothStores(t *testing.T) {
	calls := &mockCallStore{}
	transcripts := &mockTranscriptStore{}
	session := endedSession()

	calls.On("Insert", mock.Anything, session).Return(nil)
	transcripts.On("Save", "call-1", session.Messages).Return(nil)

	NewService(calls, transcripts).ArchiveCall(context.Background(), session)

	calls.AssertExpectations(t)
	transcripts.AssertExpectations(t)
}

func TestArchiveCallSwallowsFailures(t *testing.T) {
	calls := &mockCallStore{}
	transcripts := &mockTranscriptStore{}
	session := endedSession()

	calls.On("Insert", mock.Anything, session).Return(errors.New("db down"))
	transcripts.On("Save", "call-1", session.Messages).Return(errors.New("db down"))

	// Must not panic or propagate; teardown goes on regardless.
	NewService(calls, transcripts).ArchiveCall(context.Background(), session)

	calls.AssertExpectations(t)
	transcripts.AssertExpectations(t)
}

func TestArchiveCallSkipsNonTerminalSessions(t *testing.T) {
	calls := &mockCallStore{}
	session := endedSession()
	session.Status = domain.CallStatusAccepted

	NewService(calls, nil).ArchiveCall(context.Background(), session)

	calls.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestArchiveCallSkipsEmptyTranscript(t *testing.T) {
	transcripts := &mockTranscriptStore{}
	session := endedSession()
	session.Messages = nil

	NewService(nil, transcripts).ArchiveCall(context.Background(), session)

	transcripts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
