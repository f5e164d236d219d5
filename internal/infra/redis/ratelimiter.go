package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerWindow int64 = 40
	defaultWindow               = time.Hour
	minWaitStep                 = 10 * time.Millisecond
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a fixed-window send counter shared by every process
// sending from the same account.
type RedisRateLimiter struct {
	client         *goredis.Client
	limitPerWindow int64
	window         time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	script         *goredis.Script
}

func NewRedisRateLimiter(client *goredis.Client, limitPerWindow int, window time.Duration) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(
		client,
		int64(limitPerWindow),
		window,
		time.Now,
		sleepWithContext,
	)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerWindow int64,
	window time.Duration,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerWindow <= 0 {
		limitPerWindow = defaultLimitPerWindow
	}
	if window < time.Second {
		window = defaultWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:         client,
		limitPerWindow: limitPerWindow,
		window:         window,
		now:            nowFn,
		sleep:          sleepFn,
		script:         allowScript,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, account string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(account))
	if normalized == "" {
		return false, fmt.Errorf("account is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	windowSeconds := int64(r.window / time.Second)
	key := fmt.Sprintf("outreach:ratelimit:%s:%d", normalized, r.windowIndex(r.now()))
	result, err := r.script.Run(ctx, r.client, []string{key}, r.limitPerWindow, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until the account has budget, sleeping to the next window edge.
func (r *RedisRateLimiter) Wait(ctx context.Context, account string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, err := r.Allow(ctx, account)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, r.untilNextWindow(r.now())); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) windowIndex(t time.Time) int64 {
	return t.UTC().UnixNano() / int64(r.window)
}

func (r *RedisRateLimiter) untilNextWindow(t time.Time) time.Duration {
	next := time.Unix(0, (r.windowIndex(t)+1)*int64(r.window))
	d := next.Sub(t)
	if d < minWaitStep {
		d = minWaitStep
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
