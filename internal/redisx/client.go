package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Acquire claims an in-flight slot for action+session. It reports false
// when another invocation already holds it.
func Acquire(ctx context.Context, rdb *redis.Client, action, session string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyInFlight, action, session), "1", TTLInFlight).Result()
}

func Release(ctx context.Context, rdb *redis.Client, action, session string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyInFlight, action, session)).Err()
}

// MarkOnce records key and reports whether it was new.
func MarkOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}
