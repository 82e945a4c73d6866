// Package push delivers the out-of-band incoming-call notification. The
// signaling path itself works entirely through the shared store; push only
// wakes the callee's device so its client starts watching the registry.
package push

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	"telecare-calling/pkg/logger"
)

// Provider sends one notification to a set of device tokens.
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult summarizes one send attempt.
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Notification is a platform-neutral push payload.
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// Platform identifies the delivery channel for a registered device token.
type Platform string

const (
	PlatformFCM  Platform = "fcm"
	PlatformAPNs Platform = "apns"
)

// DeviceToken is one registered push target.
type DeviceToken struct {
	Token    string   `json:"token"`
	Platform Platform `json:"platform"`
}

// TokenStore resolves a user's registered device tokens.
type TokenStore interface {
	ForUser(ctx context.Context, userID string) ([]DeviceToken, error)
}

// Service fans incoming-call notifications out across providers.
type Service struct {
	tokens    TokenStore
	providers map[Platform]Provider
}

// NewService creates a new Service. Providers may be registered for any
// subset of platforms; tokens for unregistered platforms are skipped.
func NewService(tokens TokenStore, providers map[Platform]Provider) *Service {
	return &Service{tokens: tokens, providers: providers}
}

// NotifyIncomingCall wakes the callee's devices for a ringing call. The
// payload carries enough for the client to show the banner and navigate
// into the call without an extra read.
func (s *Service) NotifyIncomingCall(ctx context.Context, ptr *domain.ActiveCallPointer) error {
	tokens, err := s.tokens.ForUser(ctx, ptr.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve push tokens for %s: %w", ptr.UserID, err)
	}
	if len(tokens) == 0 {
		logger.Debug("no push tokens registered", zap.String("user_id", ptr.UserID))
		return nil
	}

	notification := &Notification{
		Title:    "Incoming call",
		Body:     fmt.Sprintf("Incoming %s call", ptr.Type),
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":      "incoming_call",
			"call_id":   ptr.CallID,
			"caller_id": ptr.Initiator,
			"call_type": string(ptr.Type),
		},
	}

	byPlatform := make(map[Platform][]string)
	for _, t := range tokens {
		byPlatform[t.Platform] = append(byPlatform[t.Platform], t.Token)
	}

	var firstErr error
	for platform, platformTokens := range byPlatform {
		provider, ok := s.providers[platform]
		if !ok {
			logger.Warn("no provider registered for platform", zap.String("platform", string(platform)))
			continue
		}
		result, serr := provider.Send(ctx, notification, platformTokens)
		if serr != nil {
			logger.Warn("push send failed",
				zap.String("platform", string(platform)),
				zap.String("call_id", ptr.CallID),
				zap.Error(serr))
			if firstErr == nil {
				firstErr = serr
			}
			continue
		}
		logger.Info("incoming-call push sent",
			zap.String("platform", string(platform)),
			zap.String("call_id", ptr.CallID),
			zap.Int("success_count", result.SuccessCount),
			zap.Int("failure_count", result.FailureCount))
	}
	return firstErr
}

// MockProvider records sends for development and tests.
type MockProvider struct {
	NotificationsSent int
}

// Send implements Provider.
func (m *MockProvider) Send(_ context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.NotificationsSent++
	logger.Debug("mock push",
		zap.String("title", notification.Title),
		zap.Int("token_count", len(tokens)))
	return &SendResult{SuccessCount: len(tokens)}, nil
}
