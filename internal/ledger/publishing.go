package ledger

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"go.uber.org/zap"
)

// AttemptPublisher announces recorded attempts to downstream consumers.
type AttemptPublisher interface {
	PublishAttempt(ctx context.Context, record domain.MessageAttemptRecord) error
}

var _ Ledger = (*Publishing)(nil)

// Publishing appends to the wrapped ledger, then publishes the record.
// Publish failures are logged; the ledger stays the source of truth.
type Publishing struct {
	inner     Ledger
	publisher AttemptPublisher
	logger    *zap.Logger
}

func NewPublishing(inner Ledger, publisher AttemptPublisher, logger *zap.Logger) (*Publishing, error) {
	if inner == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publishing{inner: inner, publisher: publisher, logger: logger}, nil
}

func (p *Publishing) Append(ctx context.Context, record domain.MessageAttemptRecord) error {
	if err := p.inner.Append(ctx, record); err != nil {
		return err
	}
	if err := p.publisher.PublishAttempt(ctx, record); err != nil {
		p.logger.Warn("failed to publish attempt event",
			zap.String("profile", record.Profile.String()),
			zap.String("outcome", record.Outcome.Label()),
			zap.Error(err),
		)
	}
	return nil
}

func (p *Publishing) ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error) {
	return p.inner.ReadAll(ctx)
}
