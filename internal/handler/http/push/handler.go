// Package push exposes device-token registration over REST.
package push

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telecare-calling/pkg/logger"
	"telecare-calling/pkg/push"
)

// TokenRegistry stores device tokens.
type TokenRegistry interface {
	Register(ctx context.Context, userID string, token push.DeviceToken) error
}

// Handler handles push token HTTP requests
type Handler struct {
	tokens TokenRegistry
}

// NewHandler creates a new push token handler
func NewHandler(tokens TokenRegistry) *Handler {
	return &Handler{tokens: tokens}
}

// RegisterTokenRequest represents request to register a push token
type RegisterTokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=fcm apns"`
}

// RegisterToken registers a device token so incoming calls can ring a closed
// app.
// POST /v1/push/tokens
func (h *Handler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := push.DeviceToken{
		Token:    req.Token,
		Platform: push.Platform(req.Platform),
	}
	if err := h.tokens.Register(c.Request.Context(), req.UserID, token); err != nil {
		logger.Error("failed to register push token",
			zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}
