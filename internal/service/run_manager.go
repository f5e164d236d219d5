package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"go.uber.org/zap"
)

const lockReleaseTimeout = 5 * time.Second

// Runner executes one outreach run.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (domain.RunState, error)
}

// RunLocker provides cross-process exclusivity per sending account.
type RunLocker interface {
	Hold(ctx context.Context, account string, onLost func(error)) (func(context.Context) error, error)
}

// RunStatus is the view of the current or last run served to pollers.
type RunStatus struct {
	RunID       string          `json:"runId"`
	Active      bool            `json:"active"`
	State       domain.RunState `json:"state"`
	MaxMessages int             `json:"maxMessages"`
	Progress    float64         `json:"progress"`
	Latest      StatusLine      `json:"latest"`
	History     []StatusLine    `json:"history"`
	Error       string          `json:"error,omitempty"`
}

type activeRun struct {
	id     string
	cfg    domain.RunConfig
	state  domain.RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// RunManager admits at most one run at a time and tracks its status.
type RunManager struct {
	runner Runner
	locker RunLocker
	board  *StatusBoard
	logger *zap.Logger

	mu     sync.Mutex
	active *activeRun
	last   *RunStatus
}

// NewRunManager wires a manager. locker may be nil for single-process use.
func NewRunManager(runner Runner, locker RunLocker, board *StatusBoard, logger *zap.Logger) (*RunManager, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if board == nil {
		board = NewStatusBoard(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunManager{
		runner: runner,
		locker: locker,
		board:  board,
		logger: logger,
	}, nil
}

// Start launches a run in the background and returns its ID. ctx only
// bounds admission: the run keeps nothing from it, so a request-scoped ctx
// is safe to pass. Use Cancel or Shutdown to stop the run.
func (m *RunManager) Start(ctx context.Context, cfg domain.RunConfig, profiles []domain.ProfileTarget) (string, error) {
	run, runCtx, release, err := m.admit(ctx, cfg)
	if err != nil {
		return "", err
	}

	go func() {
		_, _ = m.execute(runCtx, run, release, profiles)
	}()

	return run.id, nil
}

// RunSync runs in the foreground; ctx cancellation aborts the run.
func (m *RunManager) RunSync(ctx context.Context, cfg domain.RunConfig, profiles []domain.ProfileTarget) (domain.RunState, error) {
	run, runCtx, release, err := m.admit(ctx, cfg)
	if err != nil {
		return domain.RunState{}, err
	}

	stop := context.AfterFunc(ctx, run.cancel)
	defer stop()

	return m.execute(runCtx, run, release, profiles)
}

// Cancel stops the active run. It returns ErrNotFound when nothing runs.
func (m *RunManager) Cancel() error {
	m.mu.Lock()
	run := m.active
	m.mu.Unlock()

	if run == nil {
		return fmt.Errorf("%w: no active run", domain.ErrNotFound)
	}

	m.logger.Info("cancelling run", zap.String("runId", run.id))
	run.cancel()
	return nil
}

// Shutdown cancels the active run and waits for it to finish or ctx to end.
func (m *RunManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	run := m.active
	m.mu.Unlock()

	if run == nil {
		return nil
	}

	run.cancel()
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the active run, or the last finished one. ok is false if
// no run has happened yet.
func (m *RunManager) Current() (RunStatus, bool) {
	latest, progress, history := m.board.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return RunStatus{
			RunID:       m.active.id,
			Active:      true,
			State:       m.active.state,
			MaxMessages: m.active.cfg.MaxMessages,
			Progress:    progress,
			Latest:      latest,
			History:     history,
		}, true
	}
	if m.last != nil {
		status := *m.last
		status.Progress = progress
		status.Latest = latest
		status.History = history
		return status, true
	}
	return RunStatus{}, false
}

func (m *RunManager) admit(
	ctx context.Context,
	cfg domain.RunConfig,
) (*activeRun, context.Context, func(context.Context) error, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	// The run context carries no values from ctx.
	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{
		id:     uuid.NewString(),
		cfg:    cfg,
		state:  domain.RunState{Phase: domain.PhaseIdle},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	run.state.RunID = run.id

	m.mu.Lock()
	if m.active != nil {
		activeID := m.active.id
		m.mu.Unlock()
		cancel()
		return nil, nil, nil, fmt.Errorf("%w: run %s is active", domain.ErrRunInProgress, activeID)
	}
	m.active = run
	m.mu.Unlock()

	var release func(context.Context) error
	if m.locker != nil {
		var err error
		release, err = m.locker.Hold(runCtx, cfg.Credentials.Username, func(lostErr error) {
			m.logger.Error("run lock lost, cancelling run", zap.String("runId", run.id), zap.Error(lostErr))
			cancel()
		})
		if err != nil {
			m.mu.Lock()
			m.active = nil
			m.mu.Unlock()
			cancel()
			return nil, nil, nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
	}

	m.board.Reset()
	return run, runCtx, release, nil
}

func (m *RunManager) execute(
	ctx context.Context,
	run *activeRun,
	release func(context.Context) error,
	profiles []domain.ProfileTarget,
) (domain.RunState, error) {
	defer close(run.done)
	defer run.cancel()

	logger := m.logger.With(zap.String("runId", run.id))

	state, err := m.runner.Run(ctx, RunRequest{
		RunID:    run.id,
		Config:   run.cfg,
		Profiles: profiles,
		Reporter: MultiReporter{m.board, NewLogReporter(logger)},
		Observer: func(s domain.RunState) {
			m.mu.Lock()
			run.state = s
			m.mu.Unlock()
		},
	})

	if release != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		if relErr := release(releaseCtx); relErr != nil {
			logger.Warn("failed to release run lock", zap.Error(relErr))
		}
		cancel()
	}

	last := &RunStatus{
		RunID:       run.id,
		State:       state,
		MaxMessages: run.cfg.MaxMessages,
	}
	if err != nil {
		last.Error = err.Error()
	}

	m.mu.Lock()
	m.active = nil
	m.last = last
	m.mu.Unlock()

	return state, err
}
