// Package ratelimit provides fixed-window rate limiting for booking and
// queue-join endpoints.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a rate limit check. RetryAfter is only
// meaningful when Allowed is false.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts one attempt against key and reports whether it fit in the
// current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
