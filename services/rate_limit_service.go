package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiterInterface defines the contract for rate limiting operations.
type RateLimiterInterface interface {
	// CheckLimit counts one hit against key and reports whether it is within
	// limit for the current window, plus the wait before the window resets
	// when it is not.
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// RateLimitService is a per-key counter kept in Redis so every replica
// shares the same budget.
type RateLimitService struct {
	redis     *redis.Client
	keyPrefix string
}

var _ RateLimiterInterface = (*RateLimitService)(nil)

func NewRateLimitService(redis *redis.Client) *RateLimitService {
	return &RateLimitService{
		redis:     redis,
		keyPrefix: "rate_limit:",
	}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	rKey := s.keyPrefix + key

	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, rKey)
	pipe.Expire(ctx, rKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	if incr.Val() > int64(limit) {
		ttl, err := s.redis.TTL(ctx, rKey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}

	return true, 0, nil
}
