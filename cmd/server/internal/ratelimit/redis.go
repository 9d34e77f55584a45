package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// RedisLimiterStore is an echo RateLimiterStore counting requests per
// identifier in fixed one minute windows.
type RedisLimiterStore struct {
	db         *redis.Client
	limiterKey string
	perMinute  int64
	failOpen   bool
	timeout    time.Duration
}

type RedisLimiterConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	PerMinute   int64
	// Allow requests when redis cannot be reached
	FailOpen bool
	// Bound on the redis round trip. Zero uses one second.
	Timeout time.Duration
}

func (store *RedisLimiterStore) key(identifier string) string {
	return "testsmith-ratelimit-" + store.limiterKey + "-" + identifier
}

func (store *RedisLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()

	key := store.key(identifier)

	var count *redis.IntCmd
	_, err := store.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		// only the first request of a window starts its expiry
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return store.failOpen, err
	}

	return count.Val() <= store.perMinute, nil
}

func NewRedisLimitStore(config RedisLimiterConfig) *RedisLimiterStore {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	return &RedisLimiterStore{
		perMinute:  config.PerMinute,
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		failOpen:   config.FailOpen,
		timeout:    timeout,
	}
}
