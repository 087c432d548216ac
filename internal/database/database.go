// Package database implements sqlite-backed storage for patterns, the slot
// inventory, and bookings.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sql connection pool.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrNotFound is returned when a slot, pattern, or booking does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotUnavailable is returned when a reservation loses the race for a slot.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrConcurrentModification is returned when a guarded update matched no row.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode and busy timeout keep concurrent reservations from tripping
	// over sqlite's writer lock.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
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
		// Weekly pattern, one row per (day of week, interval). Closed and
		// holiday days keep a single row with null times.
		`CREATE TABLE IF NOT EXISTS garage_schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			kind TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			slot_duration INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_garage_schedules_day
			ON garage_schedules(garage_id, day_of_week, seq)`,

		`CREATE TABLE IF NOT EXISTS schedule_restrictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			date DATETIME,
			day_of_month INTEGER NOT NULL DEFAULT 0,
			month INTEGER NOT NULL DEFAULT 0,
			day_of_week INTEGER,
			start_time TEXT,
			end_time TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_restrictions_garage
			ON schedule_restrictions(garage_id, kind)`,

		// Slot identity is the (garage_id, start_time, end_time) triple; the
		// unique index makes materialization idempotent.
		`CREATE TABLE IF NOT EXISTS time_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			booking_id INTEGER,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(garage_id, start_time, end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_time_slots_available
			ON time_slots(garage_id, is_available, start_time)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			slot_id INTEGER NOT NULL,
			garage_id INTEGER NOT NULL,
			driver_id INTEGER NOT NULL,
			vehicle_id INTEGER NOT NULL,
			service_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY(slot_id) REFERENCES time_slots(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_garage ON bookings(garage_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_driver ON bookings(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(slot_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return db.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the initial schema.
func (db *DB) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE time_slots ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
		`ALTER TABLE bookings ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			if db.logger != nil {
				db.logger.Debug().Err(err).Str("migration", m).Msg("Migration skipped")
			}
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
