package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency is the redis-backed result cache behind the generic
// idempotency capability. A miss is (nil, nil).
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

func (i *Idempotency) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return i.client.Set(ctx, "idemp:"+key, val, ttl).Err()
}

// Counters exposes the raw client for the rate limiter's pipelined
// counter+expiry commands.
type Counters struct {
	client *redis.Client
}

func NewCounters(client *redis.Client) *Counters {
	return &Counters{client: client}
}

func (c *Counters) Client() *redis.Client {
	return c.client
}
