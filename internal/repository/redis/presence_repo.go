// Package redis holds the presence layer: short-lived online markers used
// to hint whether a callee is reachable before dialing. Presence is advisory
// only; the signaling path works the same whether it is available or not.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"telecare-calling/pkg/constants"
)

// PresenceRepository tracks user online status with TTL-backed keys.
type PresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetUserOnline marks a user online. The key auto-expires unless refreshed
// by the heartbeat.
func (r *PresenceRepository) SetUserOnline(ctx context.Context, userID string) error {
	if err := r.client.Set(ctx, presenceKey(userID), "online", constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}
	if err := r.client.SAdd(ctx, "presence:online", userID).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}
	return nil
}

// SetUserOffline removes the presence marker.
func (r *PresenceRepository) SetUserOffline(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	if err := r.client.SRem(ctx, "presence:online", userID).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}
	return nil
}

// IsUserOnline checks whether a user currently has a live client.
func (r *PresenceRepository) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	exists, err := r.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}

// RefreshPresence extends the TTL (heartbeat).
func (r *PresenceRepository) RefreshPresence(ctx context.Context, userID string) error {
	if err := r.client.Expire(ctx, presenceKey(userID), constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// GetOnlineUsers lists user ids currently marked online.
func (r *PresenceRepository) GetOnlineUsers(ctx context.Context) ([]string, error) {
	members, err := r.client.SMembers(ctx, "presence:online").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}
	return members, nil
}
