package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements Redis-backed fixed-window rate limiting, keyed by
// user id when present and client IP otherwise. It guards the WebSocket
// upgrade and token-registration endpoints against reconnect storms.
type RateLimiter struct {
	redisClient *redis.Client
	requests    int
	window      time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		requests:    requests,
		window:      window,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.Query("user_id")
		if identifier == "" {
			identifier = "ip:" + c.ClientIP()
		} else {
			identifier = "user:" + identifier
		}

		allowed, remaining, err := rl.checkRateLimit(c.Request.Context(), identifier)
		if err != nil {
			// Fail open: Redis being down must not block calling.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, identifier string) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s", identifier)

	pipe := rl.redisClient.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.requests, remaining, nil
}
