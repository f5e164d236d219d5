package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/ratelimit"
)

type fakeDriver struct {
	startFn func(ctx context.Context) (provider.Session, error)
	session *fakeSession
}

func (f *fakeDriver) Start(ctx context.Context) (provider.Session, error) {
	if f.startFn != nil {
		return f.startFn(ctx)
	}
	if f.session == nil {
		f.session = &fakeSession{}
	}
	return f.session, nil
}

var _ provider.Driver = (*fakeDriver)(nil)

type fakeSession struct {
	mu       sync.Mutex
	loginFn  func(ctx context.Context, creds domain.Credentials) (bool, error)
	openFn   func(ctx context.Context, profile domain.ProfileTarget) (bool, error)
	sendFn   func(ctx context.Context, text string) (bool, error)
	opened   []domain.ProfileTarget
	texts    []string
	closed   int
	loggedIn bool
}

func (f *fakeSession) Login(ctx context.Context, creds domain.Credentials) (bool, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, creds)
	}
	f.loggedIn = true
	return true, nil
}

func (f *fakeSession) OpenMessageAction(ctx context.Context, profile domain.ProfileTarget) (bool, error) {
	f.mu.Lock()
	f.opened = append(f.opened, profile)
	f.mu.Unlock()
	if f.openFn != nil {
		return f.openFn(ctx, profile)
	}
	return true, nil
}

func (f *fakeSession) SendText(ctx context.Context, text string) (bool, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, text)
	}
	return true, nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

var _ provider.Session = (*fakeSession)(nil)

type fakeLedger struct {
	inner    *ledger.MemoryLedger
	appendFn func(ctx context.Context, record domain.MessageAttemptRecord) error
}

func newFakeLedger(seed ...domain.MessageAttemptRecord) *fakeLedger {
	return &fakeLedger{inner: ledger.NewMemoryLedger(seed...)}
}

func (f *fakeLedger) Append(ctx context.Context, record domain.MessageAttemptRecord) error {
	if f.appendFn != nil {
		if err := f.appendFn(ctx, record); err != nil {
			return err
		}
	}
	return f.inner.Append(ctx, record)
}

func (f *fakeLedger) ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error) {
	return f.inner.ReadAll(ctx)
}

var _ ledger.Ledger = (*fakeLedger)(nil)

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, account string) (bool, error)
	waitFn  func(ctx context.Context, account string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, account string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, account)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, account string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, account)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeRunner struct {
	runFn func(ctx context.Context, req RunRequest) (domain.RunState, error)
}

func (f *fakeRunner) Run(ctx context.Context, req RunRequest) (domain.RunState, error) {
	if f.runFn != nil {
		return f.runFn(ctx, req)
	}
	return domain.RunState{RunID: req.RunID, Phase: domain.PhaseCompleted}, nil
}

var _ Runner = (*fakeRunner)(nil)

type fakeLocker struct {
	holdFn func(ctx context.Context, account string, onLost func(error)) (func(context.Context) error, error)
}

func (f *fakeLocker) Hold(ctx context.Context, account string, onLost func(error)) (func(context.Context) error, error) {
	if f.holdFn != nil {
		return f.holdFn(ctx, account, onLost)
	}
	return func(context.Context) error { return nil }, nil
}

var _ RunLocker = (*fakeLocker)(nil)

type recordingReporter struct {
	mu       sync.Mutex
	messages []string
	progress []float64
}

func (r *recordingReporter) ShowStatus(message string, progress *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	if progress != nil {
		r.progress = append(r.progress, *progress)
	}
}

// fakeClock advances only when the code under test sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Advance moves the clock without recording a sleep.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

func testRunConfig(maxMessages int) domain.RunConfig {
	cfg := domain.DefaultRunConfig()
	cfg.Credentials = domain.Credentials{Username: "acme", Password: "secret"}
	cfg.Message = "Hi! Loved your latest post."
	cfg.MaxMessages = maxMessages
	return cfg
}
