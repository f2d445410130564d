package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compile-time interface guard.
var _ CounterStore = (*RedisCounter)(nil)

// RedisCounter implements CounterStore with a sorted-set sliding window:
// one member per request scored by its nanosecond timestamp, expired
// entries trimmed on every write. All gateway instances sharing the Redis
// see the same windows.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a CounterStore over the given Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Record trims the window, adds this request, and returns the resulting
// cardinality in one pipelined round trip.
func (c *RedisCounter) Record(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, key)
	// Keep the key alive slightly past the window so idle identifiers expire.
	pipe.Expire(ctx, key, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

// Ping verifies the Redis connection.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
