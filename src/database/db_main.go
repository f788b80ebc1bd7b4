package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"portfolioexecutor/src/database/migrations"
	"portfolioexecutor/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// Open connects to the configured driver and tunes the connection pool.
func Open(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(config.DatabaseURLMain)
	case DriverSQLite:
		dialector = sqlite.Open(config.DatabaseURLMain)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", config.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}

// Migrate creates the schema and runs pending data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ExecutionRecord{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB initializes the main (read/write) database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := Open(config)
	if err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
