package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"gopkg.in/yaml.v3"
)

// SchedulesFile is the YAML seed for the schedule store.
//
//	schedules:
//	  - id: morning
//	    time: "09:30"
//	    profileSource: /data/profiles.xlsx
//	    message: "Hi! Loved your latest post."
//	    password: ${OUTREACH_PASSWORD}
//	    maxMessages: 20
type SchedulesFile struct {
	Schedules []ScheduleSpec `yaml:"schedules"`
}

// ScheduleSpec fields left empty fall back to the run defaults. String values
// are expanded against the environment.
type ScheduleSpec struct {
	ID               string `yaml:"id"`
	Time             string `yaml:"time"`
	ProfileSource    string `yaml:"profileSource"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Message          string `yaml:"message"`
	MaxMessages      int    `yaml:"maxMessages"`
	BatchIntervalSec int    `yaml:"batchIntervalSec"`
	CooldownMinMin   int    `yaml:"cooldownMinMin"`
	CooldownMaxMin   int    `yaml:"cooldownMaxMin"`
}

// SchedulesFromYAML parses and validates schedule entries.
func SchedulesFromYAML(data []byte, defaults RunDefaults, now time.Time) ([]domain.ScheduleEntry, error) {
	var file SchedulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: invalid schedules yaml: %w", domain.ErrValidation, err)
	}

	entries := make([]domain.ScheduleEntry, 0, len(file.Schedules))
	seen := make(map[string]struct{}, len(file.Schedules))
	for i, spec := range file.Schedules {
		entry, err := spec.toEntry(defaults, now)
		if err != nil {
			return nil, fmt.Errorf("schedule #%d: %w", i+1, err)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("schedule #%d: %w: duplicate id %q", i+1, domain.ErrValidation, entry.ID)
		}
		seen[entry.ID] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SchedulesFromFile reads the seed file. A missing file yields no entries.
func SchedulesFromFile(path string, defaults RunDefaults, now time.Time) ([]domain.ScheduleEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return SchedulesFromYAML(data, defaults, now)
}

func (s ScheduleSpec) toEntry(defaults RunDefaults, now time.Time) (domain.ScheduleEntry, error) {
	trigger, err := domain.ParseTriggerTime(s.Time)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}

	d := defaults
	if v := expand(s.Username); v != "" {
		d.Username = v
	}
	if v := expand(s.Password); v != "" {
		d.Password = v
	}
	if v := expand(s.Message); v != "" {
		d.Message = v
	}
	if s.MaxMessages != 0 {
		d.MaxMessages = s.MaxMessages
	}
	if s.BatchIntervalSec != 0 {
		d.BatchIntervalSec = s.BatchIntervalSec
	}
	if s.CooldownMinMin != 0 {
		d.CooldownMinMin = s.CooldownMinMin
	}
	if s.CooldownMaxMin != 0 {
		d.CooldownMaxMin = s.CooldownMaxMin
	}

	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = uuid.NewString()
	}

	entry := domain.ScheduleEntry{
		ID:            id,
		TriggerTime:   trigger,
		Config:        d.RunConfig(),
		ProfileSource: expand(s.ProfileSource),
		CreatedAt:     now,
	}
	if err := entry.Validate(); err != nil {
		return domain.ScheduleEntry{}, err
	}
	return entry, nil
}

func expand(v string) string {
	return strings.TrimSpace(os.ExpandEnv(v))
}
