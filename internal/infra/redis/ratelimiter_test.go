package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		2,
		time.Hour,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "alice")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected by rate limit")
	}

	now = now.Add(time.Hour)
	allowed, err = limiter.Allow(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new window should allow call")
	}
}

func TestRedisRateLimiterAllowPerAccount(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Hour,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, err := limiter.Allow(context.Background(), "alice"); err != nil || !allowed {
		t.Fatalf("Allow(alice) = %v, %v; want true", allowed, err)
	}
	if allowed, err := limiter.Allow(context.Background(), "bob"); err != nil || !allowed {
		t.Fatalf("Allow(bob) = %v, %v; want true", allowed, err)
	}
	if allowed, err := limiter.Allow(context.Background(), "Alice "); err != nil || allowed {
		t.Fatalf("Allow(Alice) = %v, %v; want false", allowed, err)
	}
}

func TestRedisRateLimiterWaitSleepsToNextWindow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0).Truncate(time.Hour).Add(45 * time.Minute)
	var slept []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Hour,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, _ := limiter.Allow(context.Background(), "alice"); !allowed {
		t.Fatal("expected first call to be allowed")
	}

	if err := limiter.Wait(context.Background(), "alice"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("sleep calls = %d, want 1", len(slept))
	}
	if slept[0] != 15*time.Minute {
		t.Fatalf("slept %s, want 15m to the window edge", slept[0])
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Hour,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if allowed, _ := limiter.Allow(context.Background(), "alice"); !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, "alice")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestNewRedisRateLimiterDefaults(t *testing.T) {
	t.Parallel()

	limiter, err := NewRedisRateLimiter(newTestRedisClient(t), 0, 0)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	if limiter.limitPerWindow != defaultLimitPerWindow {
		t.Fatalf("limitPerWindow = %d, want %d", limiter.limitPerWindow, defaultLimitPerWindow)
	}
	if limiter.window != defaultWindow {
		t.Fatalf("window = %s, want %s", limiter.window, defaultWindow)
	}

	if _, err := NewRedisRateLimiter(nil, 1, time.Hour); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
