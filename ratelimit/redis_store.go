package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ CounterStore = (*RedisStore)(nil)

// RedisStore shares rate-limit counters across server instances. The window
// is enforced with a key TTL set when the counter is first created, so all
// instances agree on the reset time.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrementOrInit(ctx context.Context, key string, window time.Duration) (int, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "RedisStore.IncrementOrInit")
	}
	return int(incr.Val()), nil
}
