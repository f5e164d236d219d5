package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// ScheduleService manages schedule entries for the API.
type ScheduleService struct {
	store  repository.ScheduleStore
	logger *zap.Logger
	now    func() time.Time
}

func NewScheduleService(store repository.ScheduleStore, logger *zap.Logger) (*ScheduleService, error) {
	if store == nil {
		return nil, fmt.Errorf("schedule store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{store: store, logger: logger, now: time.Now}, nil
}

// Add normalizes the trigger time, assigns an ID and stores the entry.
func (s *ScheduleService) Add(
	ctx context.Context,
	triggerTime string,
	profileSource string,
	cfg domain.RunConfig,
) (domain.ScheduleEntry, error) {
	normalized, err := domain.ParseTriggerTime(triggerTime)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}

	entry := domain.ScheduleEntry{
		ID:            uuid.NewString(),
		TriggerTime:   normalized,
		Config:        cfg,
		ProfileSource: profileSource,
		CreatedAt:     s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return domain.ScheduleEntry{}, err
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return domain.ScheduleEntry{}, err
	}

	s.logger.Info("schedule added",
		zap.String("scheduleId", entry.ID),
		zap.String("time", entry.TriggerTime),
	)
	return entry, nil
}

// Seed stores entries loaded at startup, skipping IDs that already exist.
func (s *ScheduleService) Seed(ctx context.Context, entries []domain.ScheduleEntry) error {
	existing, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		known[e.ID] = struct{}{}
	}

	for _, entry := range entries {
		if _, ok := known[entry.ID]; ok {
			continue
		}
		if err := s.store.Add(ctx, entry); err != nil {
			return fmt.Errorf("failed to seed schedule %s: %w", entry.ID, err)
		}
	}
	return nil
}

func (s *ScheduleService) List(ctx context.Context) ([]domain.ScheduleEntry, error) {
	return s.store.List(ctx)
}

func (s *ScheduleService) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("schedule removed", zap.String("scheduleId", id))
	return nil
}
