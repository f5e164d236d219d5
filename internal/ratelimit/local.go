package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalLimiter)(nil)

// LocalLimiter is an in-process token bucket per account, used when no
// shared redis is configured.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
}

// NewLocalLimiter allows perWindow sends per window, refilled evenly.
func NewLocalLimiter(perWindow int, window time.Duration) (*LocalLimiter, error) {
	if perWindow <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    window / time.Duration(perWindow),
		burst:    perWindow,
	}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, account string) (bool, error) {
	lim, err := l.limiterFor(account)
	if err != nil {
		return false, err
	}
	return lim.Allow(), nil
}

func (l *LocalLimiter) Wait(ctx context.Context, account string) error {
	lim, err := l.limiterFor(account)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return lim.Wait(ctx)
}

func (l *LocalLimiter) limiterFor(account string) (*rate.Limiter, error) {
	key := strings.ToLower(strings.TrimSpace(account))
	if key == "" {
		return nil, fmt.Errorf("account is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[key] = lim
	}
	return lim, nil
}
