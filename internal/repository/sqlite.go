package repository

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*Database, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		// Concurrent property scans write from several goroutines
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return newDatabase(db, DialectSQLite), nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Bookings (owned by the booking module, created here for standalone use)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		room_no TEXT,
		guest_name TEXT NOT NULL DEFAULT '',
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		total_amount REAL,
		source TEXT NOT NULL DEFAULT 'direct',
		booking_date DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings(property_id, cancelled);
	CREATE INDEX IF NOT EXISTS idx_bookings_check_out ON bookings(check_out);

	-- Room inventory and base rates
	CREATE TABLE IF NOT EXISTS rooms (
		property_id TEXT NOT NULL,
		room_no TEXT NOT NULL,
		room_type TEXT NOT NULL DEFAULT '',
		base_rate REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (property_id, room_no)
	);

	-- OTA calendar sync state per booking
	CREATE TABLE IF NOT EXISTS platform_sync_state (
		booking_id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		last_sync_at DATETIME,
		error_message TEXT,
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		resync_requested_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sync_state_property ON platform_sync_state(property_id, sync_status);

	-- Detected conflicts, keyed by their deterministic identity
	CREATE TABLE IF NOT EXISTS booking_conflicts (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		conflict_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'detected',
		conflict_date_start TEXT NOT NULL,
		conflict_date_end TEXT NOT NULL,
		room_no TEXT NOT NULL DEFAULT '',
		booking_id_1 TEXT NOT NULL,
		booking_id_2 TEXT,
		description TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		suggested_resolution TEXT,
		auto_resolvable INTEGER NOT NULL DEFAULT 0,
		resolved_by TEXT,
		resolved_at DATETIME,
		resolution_action TEXT,
		resolution_notes TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conflicts_property_status ON booking_conflicts(property_id, status);
	CREATE INDEX IF NOT EXISTS idx_conflicts_type ON booking_conflicts(conflict_type);

	-- Detection run history
	CREATE TABLE IF NOT EXISTS conflict_detection_runs (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		detected_count INTEGER NOT NULL DEFAULT 0,
		persisted_count INTEGER NOT NULL DEFAULT 0,
		persist_failures INTEGER NOT NULL DEFAULT 0,
		failed_detectors TEXT NOT NULL DEFAULT '[]',
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_detection_runs_property ON conflict_detection_runs(property_id, started_at);
	`

	_, err := db.Exec(schema)
	return err
}
