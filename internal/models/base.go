package models

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
	Logger gormlogger.Interface
}

// Dialect returns the gorm dialector for the configured driver.
func Dialect(config DatabaseConfig) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverMySQL:
		return mysql.Open(config.DSN), nil
	case DriverPostgres:
		return postgres.Open(config.DSN), nil
	case DriverSQLite, "":
		return sqlite.Open(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// InitDB opens the database connection and migrates the schema.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialect(config)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{}
	if config.Logger != nil {
		gormConfig.Logger = config.Logger
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Patient{},
		&Prediction{},
		&PastAppointment{},
	)
}
