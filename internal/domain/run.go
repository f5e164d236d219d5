package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinBatchInterval = 20 * time.Second
	MinCooldown      = time.Minute

	DefaultMaxMessages   = 48
	DefaultBatchInterval = 600 * time.Second
	DefaultCooldownMin   = 5 * time.Minute
	DefaultCooldownMax   = 5 * time.Minute
)

// Credentials are passed through to the automation capability untouched.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	if c.Username == "" {
		return "<empty>"
	}
	return c.Username + ":***"
}

// RunConfig describes one outreach run.
type RunConfig struct {
	Credentials   Credentials
	Message       string
	MaxMessages   int
	BatchInterval time.Duration
	CooldownMin   time.Duration
	CooldownMax   time.Duration
}

// DefaultRunConfig returns the form defaults, without credentials or message.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxMessages:   DefaultMaxMessages,
		BatchInterval: DefaultBatchInterval,
		CooldownMin:   DefaultCooldownMin,
		CooldownMax:   DefaultCooldownMax,
	}
}

func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Credentials.Username) == "" || c.Credentials.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if c.MaxMessages < 1 {
		return fmt.Errorf("%w: max messages must be >= 1 (got %d)", ErrValidation, c.MaxMessages)
	}
	if c.BatchInterval < MinBatchInterval {
		return fmt.Errorf("%w: batch interval must be >= %s (got %s)", ErrValidation, MinBatchInterval, c.BatchInterval)
	}
	if c.CooldownMin < MinCooldown {
		return fmt.Errorf("%w: cooldown min must be >= %s (got %s)", ErrValidation, MinCooldown, c.CooldownMin)
	}
	if c.CooldownMin > c.CooldownMax {
		return fmt.Errorf("%w: cooldown min %s exceeds cooldown max %s", ErrValidation, c.CooldownMin, c.CooldownMax)
	}
	return nil
}

// RunPhase is the controller state machine position.
type RunPhase string

const (
	PhaseIdle      RunPhase = "IDLE"
	PhaseLoggingIn RunPhase = "LOGGING_IN"
	PhaseRunning   RunPhase = "RUNNING"
	PhaseCooldown  RunPhase = "COOLDOWN"
	PhaseCompleted RunPhase = "COMPLETED"
	PhaseAborted   RunPhase = "ABORTED"
)

func (p RunPhase) String() string { return string(p) }

func (p RunPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseAborted
}

// RunState lives for one controller invocation and is handed back to the
// caller when the run ends.
type RunState struct {
	RunID        string
	Phase        RunPhase
	MessagesSent int
	BatchStart   time.Time
	Attempted    int
	Failed       int
	Skipped      int
	Cooldowns    int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Progress is MessagesSent as a percentage of the cap.
func (s RunState) Progress(maxMessages int) float64 {
	if maxMessages <= 0 {
		return 0
	}
	return float64(s.MessagesSent) / float64(maxMessages) * 100
}
