package repository

import (
	"context"
	"errors"
	"fmt"

	"telecare-calling/internal/signalstore"
	"telecare-calling/pkg/push"
)

// CollectionPushTokens holds one document per user with their registered
// device tokens.
const CollectionPushTokens = "pushTokens"

// PushTokenRepository stores device tokens in the shared document store, so
// clients register them through the same channel they use for signaling.
type PushTokenRepository struct {
	store signalstore.Store
}

// NewPushTokenRepository creates a new PushTokenRepository
func NewPushTokenRepository(store signalstore.Store) *PushTokenRepository {
	return &PushTokenRepository{store: store}
}

// Register appends one device token to the user's token document, creating
// it on first registration. Array-union keeps concurrent registrations from
// two devices intact.
func (r *PushTokenRepository) Register(ctx context.Context, userID string, token push.DeviceToken) error {
	doc := map[string]any{
		"token":    token.Token,
		"platform": string(token.Platform),
	}

	err := r.store.Append(ctx, CollectionPushTokens, userID, "tokens", doc)
	if errors.Is(err, signalstore.ErrNotFound) {
		err = r.store.Set(ctx, CollectionPushTokens, userID, map[string]any{"tokens": []any{doc}})
	}
	if err != nil {
		return fmt.Errorf("failed to register push token for %s: %w", userID, err)
	}
	return nil
}

// ForUser implements push.TokenStore. A user with no document simply has no
// tokens.
func (r *PushTokenRepository) ForUser(ctx context.Context, userID string) ([]push.DeviceToken, error) {
	snap, err := r.store.Get(ctx, CollectionPushTokens, userID)
	if errors.Is(err, signalstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read push tokens for %s: %w", userID, err)
	}

	raw, _ := snap.Data["tokens"].([]any)
	tokens := make([]push.DeviceToken, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		tokens = append(tokens, push.DeviceToken{
			Token:    asString(m["token"]),
			Platform: push.Platform(asString(m["platform"])),
		})
	}
	return tokens, nil
}
