package ledger

import (
	"context"
	"errors"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"go.uber.org/zap"
)

// LoadSent rebuilds the set of successfully contacted profiles. It never
// fails: unreadable storage yields an empty set and malformed rows are
// skipped, so a damaged ledger cannot block future sends.
func LoadSent(ctx context.Context, l Ledger, logger *zap.Logger) domain.SentSet {
	if logger == nil {
		logger = zap.NewNop()
	}

	sent := domain.NewSentSet()
	if l == nil {
		return sent
	}

	records, err := l.ReadAll(ctx)
	if err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			logger.Warn("skipping malformed ledger rows", zap.Error(err))
		} else {
			logger.Error("ledger read failed, starting with empty sent set", zap.Error(err))
		}
	}

	for _, record := range records {
		if record.Outcome == domain.OutcomeSuccess {
			sent.Add(record.Profile)
		}
	}

	return sent
}
