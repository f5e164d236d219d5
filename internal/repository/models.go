package repository

import (
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// AttemptModel is the persistence model for the message_attempts table.
type AttemptModel struct {
	ID          int64              `gorm:"primaryKey;autoIncrement"`
	ProfileURL  string             `gorm:"type:text;not null"`
	Status      domain.OutcomeKind `gorm:"type:varchar(40);not null"`
	Message     string             `gorm:"type:text;not null"`
	AttemptedAt time.Time          `gorm:"type:timestamptz;not null"`
}

func (AttemptModel) TableName() string {
	return "message_attempts"
}

// ScheduleModel is the persistence model for the schedules table.
// Credentials are stored because a trigger has to log in unattended.
// Position is assigned by the database and only read back.
type ScheduleModel struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	Position         int64     `gorm:"->"`
	TriggerTime      string    `gorm:"type:varchar(5);not null"`
	ProfileSource    string    `gorm:"type:text;not null"`
	Username         string    `gorm:"type:varchar(255);not null"`
	Password         string    `gorm:"type:varchar(255);not null"`
	Message          string    `gorm:"type:text;not null"`
	MaxMessages      int       `gorm:"not null"`
	BatchIntervalSec int64     `gorm:"not null"`
	CooldownMinSec   int64     `gorm:"not null"`
	CooldownMaxSec   int64     `gorm:"not null"`
	CreatedAt        time.Time `gorm:"type:timestamptz;not null"`
}

func (ScheduleModel) TableName() string {
	return "schedules"
}

func attemptModelFromDomain(r domain.MessageAttemptRecord) *AttemptModel {
	return &AttemptModel{
		ProfileURL:  r.Profile.String(),
		Status:      r.Outcome,
		Message:     r.Message,
		AttemptedAt: r.Timestamp,
	}
}

func attemptModelToDomain(m *AttemptModel) domain.MessageAttemptRecord {
	return domain.MessageAttemptRecord{
		Profile:   domain.ProfileTarget(m.ProfileURL),
		Outcome:   m.Status,
		Message:   m.Message,
		Timestamp: m.AttemptedAt,
	}
}

func scheduleModelFromDomain(e domain.ScheduleEntry) *ScheduleModel {
	return &ScheduleModel{
		ID:               e.ID,
		TriggerTime:      e.TriggerTime,
		ProfileSource:    e.ProfileSource,
		Username:         e.Config.Credentials.Username,
		Password:         e.Config.Credentials.Password,
		Message:          e.Config.Message,
		MaxMessages:      e.Config.MaxMessages,
		BatchIntervalSec: int64(e.Config.BatchInterval / time.Second),
		CooldownMinSec:   int64(e.Config.CooldownMin / time.Second),
		CooldownMaxSec:   int64(e.Config.CooldownMax / time.Second),
		CreatedAt:        e.CreatedAt,
	}
}

func scheduleModelToDomain(m *ScheduleModel) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		ID:            m.ID,
		TriggerTime:   m.TriggerTime,
		ProfileSource: m.ProfileSource,
		Config: domain.RunConfig{
			Credentials: domain.Credentials{
				Username: m.Username,
				Password: m.Password,
			},
			Message:       m.Message,
			MaxMessages:   m.MaxMessages,
			BatchInterval: time.Duration(m.BatchIntervalSec) * time.Second,
			CooldownMin:   time.Duration(m.CooldownMinSec) * time.Second,
			CooldownMax:   time.Duration(m.CooldownMaxSec) * time.Second,
		},
		CreatedAt: m.CreatedAt,
	}
}
