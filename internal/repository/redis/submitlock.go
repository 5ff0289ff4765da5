package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	redisx "github.com/ecetin/wedsys/internal/redis"
)

// SubmitLockStore closes the read-then-write window on RSVP submission:
// the first submit for an (event, phone) pair takes a short lock, so a
// racing duplicate fails fast instead of reaching the unique index.
type SubmitLockStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSubmitLockStore(rdb *redis.Client, ttl time.Duration) *SubmitLockStore {
	return &SubmitLockStore{rdb: rdb, ttl: ttl}
}

func (s *SubmitLockStore) Acquire(ctx context.Context, eventID, normalizedPhone string) (bool, error) {
	key := redisx.KeySubmitLock(eventID, normalizedPhone)
	return s.rdb.SetNX(ctx, key, "LOCK", s.ttl).Result()
}

func (s *SubmitLockStore) Release(ctx context.Context, eventID, normalizedPhone string) error {
	key := redisx.KeySubmitLock(eventID, normalizedPhone)
	return s.rdb.Del(ctx, key).Err()
}
