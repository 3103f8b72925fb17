package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/redis"
)

// RateLimiter counts requests per key in fixed windows using an atomic
// INCR + EXPIRE pair. Window size and max count are configuration, not core
// logic.
type RateLimiter struct {
	redis *redisadapter.Counters
}

func NewRateLimiter(redis *redisadapter.Counters) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		// Counting is an optimization; an unreachable cache must not block
		// bookings.
		return true
	}

	return incr.Val() <= int64(rate)
}
