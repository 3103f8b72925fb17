package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the result cache. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Idempotency wraps any operation fed by an at-least-once delivery so its
// externally visible effect happens at most once per key. The first call runs
// the operation and caches its serialized result; redeliveries within the TTL
// get the cached result back without re-executing side effects.
type Idempotency struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

// Do returns the operation result and whether it was served from cache. A
// cache read failure runs the operation anyway: the callers' operations are
// themselves no-ops on re-application, so duplicated work beats dropped work.
func (i *Idempotency) Do(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	cached, err := i.store.Get(ctx, key)
	if err == nil && cached != nil {
		return cached, true, nil
	}

	result, err := op(ctx)
	if err != nil {
		return nil, false, err
	}
	// Best effort: a failed Set means a redelivery may run the operation
	// again, which the callers tolerate.
	_ = i.store.Set(ctx, key, result, i.ttl)
	return result, false, nil
}

// DoJSON is Do for operations that produce a JSON-encodable result.
func DoJSON[T any](ctx context.Context, i *Idempotency, key string, op func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	raw, replayed, err := i.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		result, err := op(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return zero, replayed, err
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, replayed, fmt.Errorf("decode cached result: %w", err)
	}
	return result, replayed, nil
}
