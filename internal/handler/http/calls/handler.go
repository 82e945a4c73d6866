// Package calls exposes archived call history over REST. Live calls never
// pass through here; they live in the document store and the WebSocket
// bridge.
package calls

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
	"telecare-calling/pkg/pagination"
	"telecare-calling/pkg/sanitize"
)

// HistoryStore reads archived calls.
type HistoryStore interface {
	GetByID(ctx context.Context, callID string) (*domain.CallSession, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.CallSession, error)
}

// TranscriptStore reads archived in-call chat.
type TranscriptStore interface {
	GetByCall(callID string) ([]domain.ChatMessage, error)
}

// Handler handles call-history HTTP requests
type Handler struct {
	history     HistoryStore
	transcripts TranscriptStore
}

// NewHandler creates a new call-history handler. transcripts may be nil when
// the transcript archive is not configured.
func NewHandler(history HistoryStore, transcripts TranscriptStore) *Handler {
	return &Handler{history: history, transcripts: transcripts}
}

// ListHistory returns the user's archived calls, newest first.
// GET /v1/calls/history?user_id=<id>&limit=<n>&offset=<n>
func (h *Handler) ListHistory(c *gin.Context) {
	userID := sanitize.SanitizeUserID(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	p := pagination.Parse(c.Query("limit"), c.Query("offset"))

	sessions, err := h.history.ListForUser(c.Request.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list call history"})
		return
	}
	if sessions == nil {
		sessions = []*domain.CallSession{}
	}

	c.JSON(http.StatusOK, gin.H{
		"calls":  sessions,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

// GetCall returns one archived call.
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	callID := c.Param("id")

	session, err := h.history.GetByID(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, signalstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get call"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetTranscript returns the archived in-call chat for one call.
// GET /v1/calls/:id/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	if h.transcripts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcript archive not configured"})
		return
	}

	messages, err := h.transcripts.GetByCall(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transcript"})
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
