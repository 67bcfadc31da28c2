// Package idempotency drops repeated deliveries of the same inbound event
// before they reach the ticket state machine. Chat platforms retry webhook
// deliveries, and a double-clicked button arrives as two events with the same
// id; both must collapse into a single state change.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store answers "has this event id been processed already?". The first call
// for a given key marks it as seen; every later call reports true.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// RedisStore tracks seen events in Redis via SetNX with a TTL. Safe to share
// between processes.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// EventKey namespaces a platform event id.
func EventKey(source, eventID string) string {
	return fmt.Sprintf("idem:%s:%s", source, eventID)
}

func (s *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
