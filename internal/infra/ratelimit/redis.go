package ratelimit

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/pkg/config"
	"courtbook/internal/pkg/errs"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter is a fixed-window counter shared across instances. The key
// counter and its expiry are set atomically in a pipeline so a crash between
// INCR and EXPIRE cannot leave an immortal key.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

func NewRedisLimiter(client *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: cfg.Window,
		limit:  cfg.MaxPerWindow,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errs.Wrap(err, "rate limit check failed")
	}

	if incr.Val() > int64(l.limit) {
		ttl, err := l.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true}, nil
}

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errs.Wrap(err, "failed to connect to redis")
	}

	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}
