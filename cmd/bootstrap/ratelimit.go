package bootstrap

import (
	"context"
	"log/slog"

	"courtbook/internal/infra/ratelimit"
	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
	"courtbook/internal/usecase"

	"go.uber.org/fx"
)

var RateLimitModule = fx.Module("ratelimit",
	fx.Provide(
		NewRateLimiter,
	),
)

// NewRateLimiter prefers the Redis fixed-window limiter so limits hold
// across instances; when Redis is unreachable at startup it falls back to
// the in-process limiter rather than refusing to boot.
func NewRateLimiter(lc fx.Lifecycle, cfg config.Config, clk clock.Clock) usecase.RateLimiter {
	client, cleanup, err := ratelimit.NewRedisClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, using in-memory rate limiter", "addr", cfg.Redis.Addr, "error", err.Error())
		return ratelimit.NewMemoryLimiter(clk, cfg.RateLimit)
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			cleanup()
			return nil
		},
	})
	return ratelimit.NewRedisLimiter(client, cfg.RateLimit)
}
