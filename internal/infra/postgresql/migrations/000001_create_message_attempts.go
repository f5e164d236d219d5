package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outreach-engine/internal/repository"
	"gorm.io/gorm"
)

func createMessageAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_message_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_message_attempts_profile_success ON message_attempts (profile_url) WHERE status = 'Success'`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AttemptModel{})
		},
	}
}
