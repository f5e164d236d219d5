package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gorm.io/gorm"
)

// ScheduleStore holds schedule entries in insertion order.
type ScheduleStore interface {
	Add(ctx context.Context, entry domain.ScheduleEntry) error
	List(ctx context.Context) ([]domain.ScheduleEntry, error)
	Remove(ctx context.Context, id string) error
}

var (
	_ ScheduleStore = (*MemoryScheduleStore)(nil)
	_ ScheduleStore = (*GormScheduleRepo)(nil)
)

type MemoryScheduleStore struct {
	mu      sync.RWMutex
	entries []domain.ScheduleEntry
}

func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{}
}

func (s *MemoryScheduleStore) Add(_ context.Context, entry domain.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ID == entry.ID {
			return fmt.Errorf("%w: schedule %q already exists", domain.ErrConflict, entry.ID)
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryScheduleStore) List(_ context.Context) ([]domain.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduleEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryScheduleStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.entries {
		if existing.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type GormScheduleRepo struct {
	db *gorm.DB
}

func NewGormScheduleRepo(db *gorm.DB) *GormScheduleRepo {
	return &GormScheduleRepo{db: db}
}

func (r *GormScheduleRepo) Add(ctx context.Context, entry domain.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Create(scheduleModelFromDomain(entry)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: schedule %q already exists", domain.ErrConflict, entry.ID)
	}
	return err
}

func (r *GormScheduleRepo) List(ctx context.Context) ([]domain.ScheduleEntry, error) {
	var models []ScheduleModel
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.ScheduleEntry, 0, len(models))
	for i := range models {
		entries = append(entries, scheduleModelToDomain(&models[i]))
	}
	return entries, nil
}

func (r *GormScheduleRepo) Remove(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&ScheduleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
