package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createSchedulesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_schedules",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS schedules (
					id UUID PRIMARY KEY,
					position BIGSERIAL NOT NULL,
					trigger_time VARCHAR(5) NOT NULL,
					profile_source TEXT NOT NULL,
					username VARCHAR(255) NOT NULL,
					password VARCHAR(255) NOT NULL,
					message TEXT NOT NULL,
					max_messages INT NOT NULL,
					batch_interval_sec BIGINT NOT NULL,
					cooldown_min_sec BIGINT NOT NULL,
					cooldown_max_sec BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_schedules_position ON schedules (position)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS schedules`).Error
		},
	}
}
