// Package infra connects the local store.
package infra

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDBConnection opens the local store: postgres for postgres:// URLs,
// sqlite for everything else (a file path, file: URI or :memory:).
func NewDBConnection(cnf *config.DB, appEnv string) (*gorm.DB, error) {
	if cnf == nil || cnf.Url == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	var logMode logger.LogLevel
	if appEnv == "development" {
		logMode = logger.Info
	} else {
		logMode = logger.Silent
	}

	dialector, isSqlite := dialectorFor(cnf.Url)
	connection, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	if isSqlite {
		// one writer; sqlite serializes writes anyway
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
	}
	return connection, nil
}

func dialectorFor(url string) (gorm.Dialector, bool) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url), false
	}
	return sqlite.Open(url), true
}

// Migrate creates or updates every table of the local store.
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("local store migrated", "tables", len(domain.Models()))
	return nil
}
