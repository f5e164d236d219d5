package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
	"gorm.io/gorm"
)

var _ ledger.Ledger = (*GormAttemptRepo)(nil)

// GormAttemptRepo is the postgres-backed ledger.
type GormAttemptRepo struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Append(ctx context.Context, record domain.MessageAttemptRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.WithContext(ctx).Create(attemptModelFromDomain(record)).Error; err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// ReadAll returns rows in insertion order. Rows whose status is not a known
// outcome are reported like malformed CSV rows.
func (r *GormAttemptRepo) ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error) {
	var models []AttemptModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrUnreadable, err)
	}

	records := make([]domain.MessageAttemptRecord, 0, len(models))
	var rowErrs []error
	for i := range models {
		record := attemptModelToDomain(&models[i])
		if err := record.Validate(); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row id %d: %w", models[i].ID, err))
			continue
		}
		records = append(records, record)
	}

	if len(rowErrs) > 0 {
		return records, fmt.Errorf("%w: %w", ledger.ErrMalformedRecord, errors.Join(rowErrs...))
	}
	return records, nil
}
