package service

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultStatusHistory = 50

// StatusReporter receives human-readable progress lines from a run.
// progress is a percentage and may be nil.
type StatusReporter interface {
	ShowStatus(message string, progress *float64)
}

// StatusLine is one reported status.
type StatusLine struct {
	Message  string    `json:"message"`
	Progress *float64  `json:"progress,omitempty"`
	At       time.Time `json:"at"`
}

// StatusBoard keeps the latest status and a bounded history for pollers.
type StatusBoard struct {
	mu       sync.RWMutex
	latest   StatusLine
	progress float64
	history  []StatusLine
	limit    int
	now      func() time.Time
}

func NewStatusBoard(limit int) *StatusBoard {
	if limit <= 0 {
		limit = defaultStatusHistory
	}
	return &StatusBoard{
		limit: limit,
		now:   time.Now,
	}
}

func (b *StatusBoard) ShowStatus(message string, progress *float64) {
	line := StatusLine{Message: message, At: b.now()}
	if progress != nil {
		p := *progress
		line.Progress = &p
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = line
	if line.Progress != nil {
		b.progress = *line.Progress
	}
	b.history = append(b.history, line)
	if len(b.history) > b.limit {
		b.history = append([]StatusLine(nil), b.history[len(b.history)-b.limit:]...)
	}
}

// Snapshot returns the latest line, the last known progress and a copy of
// the history, oldest first.
func (b *StatusBoard) Snapshot() (StatusLine, float64, []StatusLine) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	history := make([]StatusLine, len(b.history))
	copy(history, b.history)
	return b.latest, b.progress, history
}

// Reset clears the board for a new run.
func (b *StatusBoard) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = StatusLine{}
	b.progress = 0
	b.history = nil
}

// LogReporter writes status lines to a zap logger.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) ShowStatus(message string, progress *float64) {
	fields := []zap.Field{zap.String("status", message)}
	if progress != nil {
		fields = append(fields, zap.Float64("progress", *progress))
	}
	r.logger.Info("run status", fields...)
}

// MultiReporter fans a status out to several reporters.
type MultiReporter []StatusReporter

func (m MultiReporter) ShowStatus(message string, progress *float64) {
	for _, r := range m {
		if r != nil {
			r.ShowStatus(message, progress)
		}
	}
}

type nopReporter struct{}

func (nopReporter) ShowStatus(string, *float64) {}
