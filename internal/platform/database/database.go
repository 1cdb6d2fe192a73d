// Package database opens the SQLite database used for job persistence.
package database

import (
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens (or creates) the SQLite database at path through GORM. Use
// ":memory:" for an in-process database, e.g. in tests. GORM's own logging is
// silenced; the caller's slog logger records the open.
func Open(path string, log *slog.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	log.Info("database opened", slog.String("path", path))
	return db, nil
}
