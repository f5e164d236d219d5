package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRunLockTTL = 2 * time.Minute

// ErrLockHeld is returned when another process owns the run lock.
var ErrLockHeld = fmt.Errorf("%w: run lock held by another sender", domain.ErrRunInProgress)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLock makes sure only one sender is active for an account at a time,
// across the scheduler and manual runs in any process.
type RunLock struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRunLock(client *goredis.Client, ttl time.Duration) (*RunLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultRunLockTTL
	}
	return &RunLock{client: client, ttl: ttl}, nil
}

// Lease is a held run lock.
type Lease struct {
	client *goredis.Client
	key    string
	token  string
	ttl    time.Duration
}

func (l *RunLock) Acquire(ctx context.Context, account string) (*Lease, error) {
	normalized := strings.ToLower(strings.TrimSpace(account))
	if normalized == "" {
		return nil, fmt.Errorf("account is required")
	}

	key := "outreach:runlock:" + normalized
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &Lease{client: l.client, key: key, token: token, ttl: l.ttl}, nil
}

// Refresh extends the lease; it fails if the lease was lost.
func (l *Lease) Refresh(ctx context.Context) error {
	res, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh run lock: %w", err)
	}
	if res == 0 {
		return ErrLockHeld
	}
	return nil
}

func (l *Lease) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// KeepAlive refreshes the lease every ttl/3 until ctx ends. onLost is called
// once if a refresh fails.
func (l *Lease) KeepAlive(ctx context.Context, onLost func(error)) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}

// Hold acquires the lock for account and keeps it alive in the background
// until the returned release func is called.
func (l *RunLock) Hold(ctx context.Context, account string, onLost func(error)) (func(context.Context) error, error) {
	lease, err := l.Acquire(ctx, account)
	if err != nil {
		return nil, err
	}

	keepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		lease.KeepAlive(keepCtx, onLost)
	}()

	return func(releaseCtx context.Context) error {
		cancel()
		<-done
		return lease.Release(releaseCtx)
	}, nil
}
