package ratelimit

import "context"

// RateLimiter caps how many messages one sending account may send per window.
type RateLimiter interface {
	Allow(ctx context.Context, account string) (bool, error)
	Wait(ctx context.Context, account string) error
}
