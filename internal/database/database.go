// Package database owns the SQLite schema and queries the booking core
// reads and writes.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var ErrNotFound = errors.New("not found")

// NewDB opens (and creates, if needed) the SQLite database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode and a busy timeout keep concurrent commit attempts from
	// failing fast on SQLITE_BUSY.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			hours_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			facility_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			hours_json TEXT NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (facility_id) REFERENCES facilities(id)
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			facility_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			FOREIGN KEY (facility_id) REFERENCES facilities(id)
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			facility_id INTEGER NOT NULL,
			staff_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			customer_id INTEGER NOT NULL,
			start_ts DATETIME NOT NULL,
			end_ts DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			booking_code TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (facility_id) REFERENCES facilities(id),
			FOREIGN KEY (staff_id) REFERENCES staff(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_facility_code ON bookings(facility_id, booking_code)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_start ON bookings(staff_id, start_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_staff_facility ON staff(facility_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_services_facility ON services(facility_id, is_active)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// PingContext reports connectivity, used by the readiness probe.
func (db *DB) PingContext(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
