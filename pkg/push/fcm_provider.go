package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"telecare-calling/pkg/logger"
)

// FCMProvider implements Provider for Firebase Cloud Messaging.
type FCMProvider struct {
	app *firebase.App
}

// FCMConfig contains configuration for the FCM provider.
type FCMConfig struct {
	CredentialsPath string // Path to service account JSON file
	CredentialsJSON []byte // Service account JSON content (alternative to file path)
	ProjectID       string // Firebase Project ID
}

// NewFCMProvider creates a new FCM provider
func NewFCMProvider(config *FCMConfig) (*FCMProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("FCM config is required")
	}

	var opts []option.ClientOption
	if len(config.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	} else if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		return nil, fmt.Errorf("either CredentialsPath or CredentialsJSON must be provided")
	}

	app, err := firebase.NewApp(context.Background(), &firebase.Config{ProjectID: config.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	logger.Info("FCM provider initialized", zap.String("project_id", config.ProjectID))
	return &FCMProvider{app: app}, nil
}

// Send implements Provider.
func (f *FCMProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	if len(tokens) == 0 {
		return &SendResult{}, nil
	}

	client, err := f.app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	fcmMessage := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Tokens: tokens,
		Data:   notification.Data,
	}

	android := &messaging.AndroidConfig{Notification: &messaging.AndroidNotification{}}
	if notification.Sound != "" {
		android.Notification.Sound = notification.Sound
	}
	if notification.Priority == "high" {
		android.Priority = "high"
	}
	if notification.Category != "" {
		android.Notification.ChannelID = notification.Category
	}
	fcmMessage.Android = android

	response, err := client.SendEachForMulticast(ctx, fcmMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM message: %w", err)
	}

	result := &SendResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
	}
	for i, resp := range response.Responses {
		if resp.Success || resp.Error == nil {
			continue
		}
		logger.Warn("FCM send failed for token",
			zap.String("token_prefix", maskPushToken(tokens[i])),
			zap.Error(resp.Error))
		if messaging.IsUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}
	return result, nil
}

// maskPushToken returns a safe masked version of a push token for logging.
func maskPushToken(token string) string {
	if len(token) <= 16 {
		return "********"
	}
	return token[:8] + "..." + token[len(token)-8:]
}
