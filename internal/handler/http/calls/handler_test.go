package calls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) GetByID(ctx context.Context, callID string) (*domain.CallSession, error) {
	args := m.Called(ctx, callID)
	if s := args.Get(0); s != nil {
		return s.(*domain.CallSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHistory) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.CallSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	if s := args.Get(0); s != nil {
		return s.([]*domain.CallSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTranscripts struct {
	mock.Mock
}

func (m *mockTranscripts) GetByCall(callID string) ([]domain.ChatMessage, error) {
	args := m.Called(callID)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/calls/history", h.ListHistory)
	r.GET("/v1/calls/:id", h.GetCall)
	r.GET("/v1/calls/:id/transcript", h.GetTranscript)
	return r
}

func archivedCall(id string) *domain.CallSession {
	return &domain.CallSession{
		ID:           id,
		Participants: [2]string{"alice", "bob"},
		Initiator:    "alice",
		Type:         domain.CallTypeVideo,
		Status:       domain.CallStatusEnded,
		CreatedAt:    time.Now().Add(-time.Hour),
		Duration:     120,
	}
}

func TestListHistoryReturnsCalls(t *testing.T) {
	history := &mockHistory{}
	history.On("ListForUser", mock.Anything, "alice", 50, 0).
		Return([]*domain.CallSession{archivedCall("c1"), archivedCall("c2")}, nil)

	router := newRouter(NewHandler(history, nil))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/history?user_id=alice", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Calls []domain.CallSession `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Calls, 2)
	history.AssertExpectations(t)
}

func TestListHistoryRequiresUserID(t *testing.T) {
	router := newRouter(NewHandler(&mockHistory{}, nil))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListHistoryClampsPagination(t *testing.T) {
	history := &mockHistory{}
	history.On("ListForUser", mock.Anything, "alice", 50, 0).
		Return([]*domain.CallSession{}, nil)

	router := newRouter(NewHandler(history, nil))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/history?user_id=alice&limit=9999&offset=-3", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	history.AssertExpectations(t)
}

func TestGetCallNotFound(t *testing.T) {
	history := &mockHistory{}
	history.On("GetByID", mock.Anything, "missing").Return(nil, signalstore.ErrNotFound)

	router := newRouter(NewHandler(history, nil))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTranscriptWithoutArchiveConfigured(t *testing.T) {
	router := newRouter(NewHandler(&mockHistory{}, nil))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/c1/transcript", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTranscriptReturnsMessages(t *testing.T) {
	transcripts := &mockTranscripts{}
	transcripts.On("GetByCall", "c1").Return([]domain.ChatMessage{
		{Sender: "alice", Content: "hi", SentAt: time.Now()},
	}, nil)

	router := newRouter(NewHandler(&mockHistory{}, transcripts))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/calls/c1/transcript", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "alice", body.Messages[0].Sender)
}
