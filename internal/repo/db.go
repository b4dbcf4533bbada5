// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver, used in development and tests) and PostgreSQL
// (production), plus schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/techcorp/taskflow-support/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	tunePool(db)
	return db, nil
}

// OpenPostgres connects to PostgreSQL. Postgres is required in production:
// the queue's SKIP LOCKED claims and the per-conversation row locks need
// real row locking, which SQLite only approximates with its single writer.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	tunePool(db)
	return db, nil
}

// WithTracing registers the GORM OpenTelemetry plugin so every query shows
// up as a span under the active trace. Call it once after Open*.
func WithTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// IsPostgres reports whether db speaks the postgres dialect. Locking
// clauses (SKIP LOCKED, FOR UPDATE) are only attached on postgres.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates the full schema.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Customer{},
		&domain.Identifier{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.QueueEntry{},
		&domain.DeadLetter{},
		&domain.MetricRecord{},
	)
	if err != nil {
		return err
	}
	// At most one open conversation per customer. GORM tags cannot express a
	// partial index predicate; both sqlite and postgres accept this form. The
	// loser of a concurrent first-contact race gets a unique violation and
	// re-reads the winner's row.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_one_open
		 ON conversations (customer_id) WHERE status != 'resolved'`,
	).Error
}
