package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultSchedulerPollInterval = 30 * time.Second
	defaultSchedulerDebounce     = 60 * time.Second
)

// ScheduledRunFunc performs the run for a triggered entry.
type ScheduledRunFunc func(ctx context.Context, entry domain.ScheduleEntry) error

// ProfileLoader resolves a schedule's profile source to a target list.
type ProfileLoader func(source string) ([]domain.ProfileTarget, error)

// Scheduler polls the schedule store and fires entries whose trigger time
// matches the current minute. Entries fire one after another in list order.
type Scheduler struct {
	store    repository.ScheduleStore
	run      ScheduledRunFunc
	logger   *zap.Logger
	interval time.Duration
	debounce time.Duration
	loc      *time.Location
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	compiled map[string]cron.Schedule
}

func NewScheduler(
	store repository.ScheduleStore,
	run ScheduledRunFunc,
	interval time.Duration,
	debounce time.Duration,
	loc *time.Location,
	logger *zap.Logger,
) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("schedule store is required")
	}
	if run == nil {
		return nil, fmt.Errorf("run func is required")
	}
	if interval <= 0 {
		interval = defaultSchedulerPollInterval
	}
	if debounce < 0 {
		debounce = defaultSchedulerDebounce
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		store:    store,
		run:      run,
		logger:   logger,
		interval: interval,
		debounce: debounce,
		loc:      loc,
		now:      time.Now,
		sleep:    sleepContext,
		compiled: make(map[string]cron.Schedule),
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info("scheduler started", zap.Duration("pollInterval", s.interval))
	for {
		if s.poll(ctx) {
			if err := s.sleep(ctx, s.debounce); err != nil {
				s.logger.Info("scheduler stopped")
				return nil
			}
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// Handle controls a scheduler started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the scheduler and waits for the in-flight run to end.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start runs the scheduler in a goroutine.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		_ = s.Run(ctx)
	}()

	return h
}

// poll fires every matching entry and reports whether any fired.
func (s *Scheduler) poll(ctx context.Context) bool {
	entries, err := s.store.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to list schedules", zap.Error(err))
		}
		return false
	}

	minute := s.now().In(s.loc).Truncate(time.Minute)
	fired := false
	for _, entry := range entries {
		if ctx.Err() != nil {
			return fired
		}

		matched, err := s.matches(entry.TriggerTime, minute)
		if err != nil {
			s.logger.Warn("skipping schedule with bad trigger time",
				zap.String("scheduleId", entry.ID),
				zap.String("time", entry.TriggerTime),
				zap.Error(err),
			)
			continue
		}
		if !matched {
			continue
		}

		fired = true
		s.logger.Info("running scheduled task",
			zap.String("scheduleId", entry.ID),
			zap.String("time", entry.TriggerTime),
		)
		if err := s.run(ctx, entry); err != nil {
			s.logger.Error("scheduled run failed",
				zap.String("scheduleId", entry.ID),
				zap.Error(err),
			)
		}
	}
	return fired
}

// matches compiles "HH:MM" into a daily cron schedule and checks whether
// its activation falls on minute.
func (s *Scheduler) matches(trigger string, minute time.Time) (bool, error) {
	sched, err := s.schedule(trigger)
	if err != nil {
		return false, err
	}
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

func (s *Scheduler) schedule(trigger string) (cron.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sched, ok := s.compiled[trigger]; ok {
		return sched, nil
	}

	spec, err := TriggerCronSpec(trigger)
	if err != nil {
		return nil, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	s.compiled[trigger] = sched
	return sched, nil
}

// TriggerCronSpec turns "HH:MM" into a daily standard cron expression.
func TriggerCronSpec(trigger string) (string, error) {
	normalized, err := domain.ParseTriggerTime(trigger)
	if err != nil {
		return "", err
	}
	t, _ := time.Parse(domain.TriggerTimeLayout, normalized)
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// ScheduledRun adapts the manager to the scheduler. The profile source is
// re-read on every trigger.
func (m *RunManager) ScheduledRun(load ProfileLoader) ScheduledRunFunc {
	return func(ctx context.Context, entry domain.ScheduleEntry) error {
		profiles, err := load(entry.ProfileSource)
		if err != nil {
			return fmt.Errorf("schedule %s: failed to load profiles: %w", entry.ID, err)
		}

		state, err := m.RunSync(ctx, entry.Config, profiles)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", entry.ID, err)
		}

		m.logger.Info("scheduled run finished",
			zap.String("scheduleId", entry.ID),
			zap.String("runId", state.RunID),
			zap.Int("messagesSent", state.MessagesSent),
		)
		return nil
	}
}
