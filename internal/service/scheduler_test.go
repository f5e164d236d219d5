package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

type fakeScheduleStore struct {
	listFn func(ctx context.Context) ([]domain.ScheduleEntry, error)
}

func (f *fakeScheduleStore) Add(ctx context.Context, entry domain.ScheduleEntry) error { return nil }

func (f *fakeScheduleStore) List(ctx context.Context) ([]domain.ScheduleEntry, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeScheduleStore) Remove(ctx context.Context, id string) error { return nil }

var _ repository.ScheduleStore = (*fakeScheduleStore)(nil)

func scheduleEntry(id, trigger string) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		ID:            id,
		TriggerTime:   trigger,
		Config:        testRunConfig(5),
		ProfileSource: id + ".xlsx",
	}
}

func TestNewSchedulerAppliesDefaults(t *testing.T) {
	t.Parallel()

	run := func(context.Context, domain.ScheduleEntry) error { return nil }
	scheduler, err := NewScheduler(repository.NewMemoryScheduleStore(), run, 0, -1, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if scheduler.interval != defaultSchedulerPollInterval {
		t.Fatalf("interval = %s, want %s", scheduler.interval, defaultSchedulerPollInterval)
	}
	if scheduler.debounce != defaultSchedulerDebounce {
		t.Fatalf("debounce = %s, want %s", scheduler.debounce, defaultSchedulerDebounce)
	}
	if scheduler.loc != time.Local {
		t.Fatal("loc should default to time.Local")
	}

	if _, err := NewScheduler(nil, run, 0, 0, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewScheduler(repository.NewMemoryScheduleStore(), nil, 0, 0, nil, nil); err == nil {
		t.Fatal("expected error for nil run func")
	}
}

func TestTriggerCronSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		trigger string
		want    string
		wantErr bool
	}{
		{trigger: "09:05", want: "5 9 * * *"},
		{trigger: "9:05", want: "5 9 * * *"},
		{trigger: "00:00", want: "0 0 * * *"},
		{trigger: "23:59", want: "59 23 * * *"},
		{trigger: "24:00", wantErr: true},
		{trigger: "noon", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.trigger, func(t *testing.T) {
			t.Parallel()
			got, err := TriggerCronSpec(tt.trigger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TriggerCronSpec(%q) error = %v, wantErr %v", tt.trigger, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("TriggerCronSpec(%q) = %q, want %q", tt.trigger, got, tt.want)
			}
		})
	}
}

func TestSchedulerMatchesMinute(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	s, err := NewScheduler(&fakeScheduleStore{}, func(context.Context, domain.ScheduleEntry) error { return nil }, time.Second, 0, loc, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	minute := time.Date(2026, 3, 1, 9, 5, 0, 0, loc)
	tests := []struct {
		trigger string
		want    bool
	}{
		{trigger: "09:05", want: true},
		{trigger: "09:04", want: false},
		{trigger: "09:06", want: false},
		{trigger: "06:05", want: false},
	}
	for _, tt := range tests {
		got, err := s.matches(tt.trigger, minute)
		if err != nil {
			t.Fatalf("matches(%q) error = %v", tt.trigger, err)
		}
		if got != tt.want {
			t.Fatalf("matches(%q, %s) = %v, want %v", tt.trigger, minute, got, tt.want)
		}
	}
}

func TestSchedulerRunsSameMinuteEntriesSequentially(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryScheduleStore()
	for _, e := range []domain.ScheduleEntry{
		scheduleEntry("first", "09:05"),
		scheduleEntry("other", "10:00"),
		scheduleEntry("second", "09:05"),
	} {
		if err := store.Add(context.Background(), e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	var (
		mu       sync.Mutex
		inFlight int
		overlap  bool
		order    []string
	)
	run := func(ctx context.Context, entry domain.ScheduleEntry) error {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlap = true
		}
		order = append(order, entry.ID)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		if entry.ID == "first" {
			return errors.New("login failed")
		}
		return nil
	}

	s, err := NewScheduler(store, run, 30*time.Second, 60*time.Second, time.UTC, zap.NewNop())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 5, 42, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if overlap {
		t.Fatal("scheduled runs overlapped")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
	if len(sleeps) != 2 || sleeps[0] != 60*time.Second || sleeps[1] != 30*time.Second {
		t.Fatalf("sleeps = %v, want [debounce poll]", sleeps)
	}
}

func TestSchedulerNoMatchOnlyPolls(t *testing.T) {
	t.Parallel()

	calls := 0
	store := &fakeScheduleStore{listFn: func(ctx context.Context) ([]domain.ScheduleEntry, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("db down")
		}
		return []domain.ScheduleEntry{scheduleEntry("late", "23:00"), {ID: "broken", TriggerTime: "xx"}}, nil
	}}
	ran := false
	s, _ := NewScheduler(store, func(context.Context, domain.ScheduleEntry) error { ran = true; return nil }, time.Second, time.Minute, time.UTC, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	_ = s.Run(ctx)

	if ran {
		t.Fatal("no entry should have fired")
	}
	if calls != 2 {
		t.Fatalf("List calls = %d, want 2", calls)
	}
	for _, d := range sleeps {
		if d != time.Second {
			t.Fatalf("sleeps = %v, want only poll intervals", sleeps)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s, _ := NewScheduler(&fakeScheduleStore{}, func(context.Context, domain.ScheduleEntry) error { return nil }, time.Hour, 0, time.UTC, nil)

	h := s.Start(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Done() should be closed after Stop")
	}
}
