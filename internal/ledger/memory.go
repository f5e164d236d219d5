package ledger

import (
	"context"
	"sync"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger keeps records in process memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	records []domain.MessageAttemptRecord
}

func NewMemoryLedger(seed ...domain.MessageAttemptRecord) *MemoryLedger {
	records := make([]domain.MessageAttemptRecord, len(seed))
	copy(records, seed)
	return &MemoryLedger{records: records}
}

func (l *MemoryLedger) Append(ctx context.Context, record domain.MessageAttemptRecord) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *MemoryLedger) ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.MessageAttemptRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}
