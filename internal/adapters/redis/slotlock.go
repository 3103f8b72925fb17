package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// SlotLock is an advisory claim on a (resourceGroup, startAt, endAt) tuple.
// It is not authoritative: the store's range-exclusion constraint is. On any
// cache failure the lock fails open and lets the store be the sole guard.
type SlotLock struct {
	client *redis.Client
	logger observability.Logger
}

func NewSlotLock(client *redis.Client, logger observability.Logger) *SlotLock {
	return &SlotLock{client: client, logger: logger}
}

// release deletes the key only when the stored booking id matches: a
// compare-and-delete, so a lock that expired and was re-acquired by another
// booking cannot be removed by the previous holder.
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == false then return 0 end
local sep = string.find(v, "|", 1, true)
local id = v
if sep then id = string.sub(v, 1, sep - 1) end
if id == ARGV[1] then return redis.call("DEL", KEYS[1]) end
return 0
`)

var extendScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == false then return 0 end
local sep = string.find(v, "|", 1, true)
local id = v
if sep then id = string.sub(v, 1, sep - 1) end
if id == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end
return 0
`)

func lockKey(groupID string, startAt, endAt time.Time) string {
	return fmt.Sprintf("slotlock:%s:%d-%d", groupID, startAt.Unix(), endAt.Unix())
}

// Acquire does an atomic set-if-absent with TTL. It returns false plus the
// current holder when the slot is already claimed. Cache failures report
// success with a nil holder.
func (l *SlotLock) Acquire(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID, ownerID string, ttl time.Duration) (bool, *domain.LockInfo) {
	key := lockKey(groupID, startAt, endAt)
	ok, err := l.client.SetNX(ctx, key, bookingID+"|"+ownerID, ttl).Result()
	if err != nil {
		l.logger.WithField("key", key).Warn("slot lock acquire failed, failing open: ", err)
		observability.LockFailOpen.Inc()
		return true, nil
	}
	if ok {
		return true, nil
	}
	holder, err := l.Peek(ctx, groupID, startAt, endAt)
	if err != nil {
		return false, nil
	}
	return false, holder
}

func (l *SlotLock) Release(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID string) bool {
	key := lockKey(groupID, startAt, endAt)
	n, err := releaseScript.Run(ctx, l.client, []string{key}, bookingID).Int()
	if err != nil {
		l.logger.WithField("key", key).Warn("slot lock release failed: ", err)
		return false
	}
	return n == 1
}

func (l *SlotLock) Extend(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID string, additional time.Duration) bool {
	key := lockKey(groupID, startAt, endAt)
	n, err := extendScript.Run(ctx, l.client, []string{key}, bookingID, additional.Milliseconds()).Int()
	if err != nil {
		l.logger.WithField("key", key).Warn("slot lock extend failed: ", err)
		return false
	}
	return n == 1
}

func (l *SlotLock) Peek(ctx context.Context, groupID string, startAt, endAt time.Time) (*domain.LockInfo, error) {
	val, err := l.client.Get(ctx, lockKey(groupID, startAt, endAt)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info := &domain.LockInfo{BookingID: val}
	if sep := strings.IndexByte(val, '|'); sep >= 0 {
		info.BookingID = val[:sep]
		info.OwnerID = val[sep+1:]
	}
	return info, nil
}
