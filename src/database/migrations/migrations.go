package migrations

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DataMigration is the ledger row of an applied data migration.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

func ensureDataMigrationsTable(db *gorm.DB) error {
	if db.Migrator().HasTable(&DataMigration{}) {
		return nil
	}
	return db.AutoMigrate(&DataMigration{})
}

// Migration is one named data change applied at most once per database.
type Migration struct {
	ID string
	Fn func(*gorm.DB) error
}

// all lists the data migrations in application order. Ids are never reused.
var all = []Migration{
	{ID: "00001_execution_records_review_index", Fn: createReviewIndex},
}

// RunOnce applies fn inside a transaction unless migrationID is already recorded.
// The id is recorded in the same transaction, so a failing fn leaves no trace.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	switch {
	case db == nil:
		return nil
	case migrationID == "":
		return errors.New("migration id is empty")
	case fn == nil:
		return fmt.Errorf("migration %q has no body", migrationID)
	}

	if err := ensureDataMigrationsTable(db); err != nil {
		return fmt.Errorf("prepare data_migrations: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var applied int64
		if err := tx.Model(&DataMigration{}).Where("id = ?", migrationID).Count(&applied).Error; err != nil {
			return fmt.Errorf("lookup migration %q: %w", migrationID, err)
		}
		if applied > 0 {
			return nil
		}

		if err := fn(tx); err != nil {
			return fmt.Errorf("apply migration %q: %w", migrationID, err)
		}
		if err := tx.Create(&DataMigration{ID: migrationID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("mark migration %q: %w", migrationID, err)
		}

		logrus.WithField("migration", migrationID).Info("[database] data migration applied")
		return nil
	})
}

// Run applies every pending data migration in order.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	for _, m := range all {
		if err := RunOnce(db, m.ID, m.Fn); err != nil {
			return err
		}
	}
	return nil
}

// createReviewIndex backs the (workflow, review result) lookup of a review cycle.
func createReviewIndex(tx *gorm.DB) error {
	return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_execution_records_review ON execution_records (workflow_id, review_result_id)`).Error
}
