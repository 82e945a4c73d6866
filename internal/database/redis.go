// Package database holds connection helpers for the archival and presence
// backends. The signaling path itself talks only to the document store.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"telecare-calling/pkg/logger"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisDB wraps the Redis client used for presence tracking.
type RedisDB struct {
	Client *redis.Client
}

// NewRedisDB creates a new Redis client and verifies connectivity.
func NewRedisDB(ctx context.Context, cfg *RedisConfig) (*RedisDB, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisDB{Client: client}, nil
}

// Close closes the Redis client connection
func (r *RedisDB) Close() {
	r.Client.Close()
}

// StartHealthCheck pings Redis at the given interval until ctx is cancelled,
// logging failures. Presence reads already degrade gracefully, so a failed
// check is observability only.
func (r *RedisDB) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				if err := r.Client.Ping(pingCtx).Err(); err != nil {
					logger.Warn("redis health check failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}
