package push

import (
	"fmt"

	"go.uber.org/zap"

	"telecare-calling/pkg/env"
	"telecare-calling/pkg/logger"
)

// NewProvidersFromEnv builds the provider set from environment
// configuration. PUSH_PROVIDERS is a comma-free single value or left unset:
// "fcm", "apns", "all", or "mock" (default).
func NewProvidersFromEnv() (map[Platform]Provider, error) {
	mode := env.GetString("PUSH_PROVIDERS", "mock")
	logger.Info("initializing push providers", zap.String("mode", mode))

	providers := make(map[Platform]Provider)
	switch mode {
	case "mock":
		mock := &MockProvider{}
		providers[PlatformFCM] = mock
		providers[PlatformAPNs] = mock
	case "fcm":
		fcm, err := fcmFromEnv()
		if err != nil {
			return nil, err
		}
		providers[PlatformFCM] = fcm
	case "apns":
		apns, err := apnsFromEnv()
		if err != nil {
			return nil, err
		}
		providers[PlatformAPNs] = apns
	case "all":
		fcm, err := fcmFromEnv()
		if err != nil {
			return nil, err
		}
		apns, err := apnsFromEnv()
		if err != nil {
			return nil, err
		}
		providers[PlatformFCM] = fcm
		providers[PlatformAPNs] = apns
	default:
		return nil, fmt.Errorf("unknown push provider mode %q", mode)
	}
	return providers, nil
}

func fcmFromEnv() (Provider, error) {
	projectID := env.GetString("FCM_PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("FCM_PROJECT_ID is required for the fcm provider")
	}
	return NewFCMProvider(&FCMConfig{
		ProjectID:       projectID,
		CredentialsPath: env.GetString("FCM_CREDENTIALS_PATH", ""),
		CredentialsJSON: []byte(env.GetStringFromFile("FCM_CREDENTIALS_JSON", "")),
	})
}

func apnsFromEnv() (Provider, error) {
	return NewAPNsProvider(&APNsConfig{
		KeyPath:    env.GetString("APNS_KEY_PATH", ""),
		KeyID:      env.GetString("APNS_KEY_ID", ""),
		TeamID:     env.GetString("APNS_TEAM_ID", ""),
		BundleID:   env.GetString("APNS_BUNDLE_ID", ""),
		Production: env.GetBool("APNS_PRODUCTION", false),
	})
}
