package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"github.com/kursadbilgin/outreach-engine/internal/observability"
	"github.com/kursadbilgin/outreach-engine/internal/pacing"
	"github.com/kursadbilgin/outreach-engine/internal/provider"
	"github.com/kursadbilgin/outreach-engine/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	sessionCloseTimeout = 30 * time.Second
	ledgerAppendTimeout = 10 * time.Second
)

// RunRequest is one invocation of the outreach loop. Reporter overrides the
// controller's default reporter; Observer sees the state at every status line.
type RunRequest struct {
	RunID    string
	Config   domain.RunConfig
	Profiles []domain.ProfileTarget
	Reporter StatusReporter
	Observer func(domain.RunState)
}

// Controller drives a single outreach run: login, then for each candidate
// skip, cool down, or send and record the outcome.
type Controller struct {
	driver   provider.Driver
	ledger   ledger.Ledger
	policy   *pacing.Policy
	limiter  ratelimit.RateLimiter
	reporter StatusReporter
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewController wires a controller. limiter and reporter may be nil.
func NewController(
	driver provider.Driver,
	attempts ledger.Ledger,
	policy *pacing.Policy,
	limiter ratelimit.RateLimiter,
	reporter StatusReporter,
	logger *zap.Logger,
) (*Controller, error) {
	if driver == nil {
		return nil, fmt.Errorf("automation driver is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if policy == nil {
		policy = pacing.NewPolicy(pacing.DefaultDelayMin, pacing.DefaultDelayMax)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		driver:   driver,
		ledger:   attempts,
		policy:   policy,
		limiter:  limiter,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

func (c *Controller) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Run executes the request and returns the final state. The returned state
// is meaningful even when err is non-nil.
func (c *Controller) Run(ctx context.Context, req RunRequest) (domain.RunState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	state := domain.RunState{
		RunID:     req.RunID,
		Phase:     domain.PhaseIdle,
		StartedAt: c.now(),
	}

	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return state, err
	}

	reporter := req.Reporter
	if reporter == nil {
		reporter = c.reporter
	}
	status := func(message string, progress *float64) {
		reporter.ShowStatus(message, progress)
		if req.Observer != nil {
			req.Observer(state)
		}
	}

	ctx = observability.WithRunID(ctx, req.RunID)
	logger := observability.WithContextLogger(c.logger, ctx)

	c.metrics.RunStarted()
	defer func() { c.metrics.RunFinished(state.Phase.String()) }()

	logger.Info("run starting",
		zap.Int("profiles", len(req.Profiles)),
		zap.Int("maxMessages", cfg.MaxMessages),
		zap.String("account", cfg.Credentials.Username),
	)

	sent := ledger.LoadSent(ctx, c.ledger, logger)

	session, err := c.driver.Start(ctx)
	if err != nil {
		status(fmt.Sprintf("Error initializing automation: %v", err), nil)
		return c.abort(&state, logger, fmt.Errorf("%w: %w", domain.ErrAutomationInit, err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("failed to close automation session", zap.Error(err))
		}
	}()

	state.Phase = domain.PhaseLoggingIn
	status("Logging in...", nil)

	ok, err := session.Login(ctx, cfg.Credentials)
	if err != nil || !ok {
		if ctx.Err() != nil {
			return c.abort(&state, logger, ctx.Err())
		}
		if err == nil {
			err = errors.New("login rejected")
		}
		status(fmt.Sprintf("Login failed ❌: %v", err), nil)
		status("Cannot continue without login ❌", nil)
		return c.abort(&state, logger, fmt.Errorf("%w: %w", domain.ErrAuth, err))
	}
	status("Login successful ✅", nil)

	state.Phase = domain.PhaseRunning
	state.BatchStart = c.now()

	for i := 0; i < len(req.Profiles); {
		if err := ctx.Err(); err != nil {
			status("Run cancelled", nil)
			return c.abort(&state, logger, err)
		}

		if c.policy.ShouldStop(state, cfg) {
			status(fmt.Sprintf("Message limit reached (%d messages sent) ✅", state.MessagesSent), nil)
			break
		}

		profile := req.Profiles[i]
		if sent.Has(profile) {
			state.Skipped++
			c.metrics.IncSkipped()
			status(fmt.Sprintf("Skipping already sent profile: %s", profile), nil)
			i++
			continue
		}

		if c.policy.NeedsCooldown(state, cfg, c.now()) {
			cooldown := c.policy.CooldownDuration(cfg)
			state.Phase = domain.PhaseCooldown
			state.Cooldowns++
			c.metrics.IncCooldown()
			status(fmt.Sprintf("⏳ Cooling down for %.1f minutes...", cooldown.Minutes()), nil)
			logger.Info("cooldown", zap.Duration("duration", cooldown), zap.Int("messagesSent", state.MessagesSent))

			if err := c.sleep(ctx, cooldown); err != nil {
				status("Run cancelled", nil)
				return c.abort(&state, logger, err)
			}
			state.BatchStart = c.now()
			state.Phase = domain.PhaseRunning
			continue
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, cfg.Credentials.Username); err != nil {
				if ctx.Err() != nil {
					return c.abort(&state, logger, ctx.Err())
				}
				return c.abort(&state, logger, fmt.Errorf("send-rate guard failed: %w", err))
			}
			// A long send-rate wait can outlast the batch interval.
			if c.policy.NeedsCooldown(state, cfg, c.now()) {
				continue
			}
		}

		outcome := c.sendOne(ctx, logger, session, profile, cfg.Message)

		// Once the automation has answered, the outcome is recorded even if
		// the run was cancelled meanwhile; a delivered message must reach
		// the ledger.
		record := domain.MessageAttemptRecord{
			Profile:   profile,
			Outcome:   outcome,
			Message:   cfg.Message,
			Timestamp: c.now().Truncate(time.Second),
		}
		appendCtx, cancelAppend := context.WithTimeout(context.WithoutCancel(ctx), ledgerAppendTimeout)
		err := c.ledger.Append(appendCtx, record)
		cancelAppend()
		if err != nil {
			status(fmt.Sprintf("Failed to record result for %s: %v", profile, err), nil)
			return c.abort(&state, logger, fmt.Errorf("failed to append attempt: %w", err))
		}

		state.Attempted++
		c.metrics.IncAttempt(outcome.Label())

		switch outcome {
		case domain.OutcomeSuccess:
			state.MessagesSent++
			sent.Add(profile)
			progress := state.Progress(cfg.MaxMessages)
			status(
				fmt.Sprintf("✅ Message sent to %s (Total: %d/%d)", profile, state.MessagesSent, cfg.MaxMessages),
				&progress,
			)
		case domain.OutcomeFailedNoOpenAction:
			state.Failed++
			status(fmt.Sprintf("Neither button found for profile: %s", profile), nil)
		default:
			state.Failed++
			status(fmt.Sprintf("Send message button not found for %s", profile), nil)
		}
		i++

		if err := ctx.Err(); err != nil {
			status("Run cancelled", nil)
			return c.abort(&state, logger, err)
		}

		delay := c.policy.InterMessageDelay()
		status(fmt.Sprintf("⏳ Waiting %.1f seconds before next message...", delay.Seconds()), nil)
		if err := c.sleep(ctx, delay); err != nil {
			status("Run cancelled", nil)
			return c.abort(&state, logger, err)
		}
	}

	state.Phase = domain.PhaseCompleted
	state.FinishedAt = c.now()
	status("Run completed successfully! ✅", nil)
	logger.Info("run completed",
		zap.Int("messagesSent", state.MessagesSent),
		zap.Int("attempted", state.Attempted),
		zap.Int("failed", state.Failed),
		zap.Int("skipped", state.Skipped),
	)

	return state, nil
}

// sendOne maps automation results to an outcome. Automation errors are
// logged and count as the step failing.
func (c *Controller) sendOne(
	ctx context.Context,
	logger *zap.Logger,
	session provider.Session,
	profile domain.ProfileTarget,
	text string,
) domain.OutcomeKind {
	start := c.now()
	defer func() { c.metrics.ObserveSendDuration(c.now().Sub(start)) }()

	opened, err := session.OpenMessageAction(ctx, profile)
	if err != nil {
		logger.Warn("open message action failed", zap.String("profile", profile.String()), zap.Error(err))
	}
	if err != nil || !opened {
		return domain.OutcomeFailedNoOpenAction
	}

	delivered, err := session.SendText(ctx, text)
	if err != nil {
		logger.Warn("send text failed", zap.String("profile", profile.String()), zap.Error(err))
	}
	if err != nil || !delivered {
		return domain.OutcomeFailedNoSendControl
	}

	return domain.OutcomeSuccess
}

func (c *Controller) abort(state *domain.RunState, logger *zap.Logger, err error) (domain.RunState, error) {
	state.Phase = domain.PhaseAborted
	state.FinishedAt = c.now()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("run cancelled", zap.Int("messagesSent", state.MessagesSent))
	} else {
		logger.Error("run aborted", zap.Int("messagesSent", state.MessagesSent), zap.Error(err))
	}
	return *state, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
