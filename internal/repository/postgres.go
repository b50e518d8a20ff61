package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*Database, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return newDatabase(db, DialectPostgres), nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		room_no TEXT,
		guest_name TEXT NOT NULL DEFAULT '',
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		total_amount DOUBLE PRECISION,
		source TEXT NOT NULL DEFAULT 'direct',
		booking_date TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings(property_id, cancelled);
	CREATE INDEX IF NOT EXISTS idx_bookings_check_out ON bookings(check_out);

	CREATE TABLE IF NOT EXISTS rooms (
		property_id TEXT NOT NULL,
		room_no TEXT NOT NULL,
		room_type TEXT NOT NULL DEFAULT '',
		base_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (property_id, room_no)
	);

	CREATE TABLE IF NOT EXISTS platform_sync_state (
		booking_id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		last_sync_at TIMESTAMP,
		error_message TEXT,
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		resync_requested_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sync_state_property ON platform_sync_state(property_id, sync_status);

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
		auto_resolvable BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_by TEXT,
		resolved_at TIMESTAMP,
		resolution_action TEXT,
		resolution_notes TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_conflicts_property_status ON booking_conflicts(property_id, status);
	CREATE INDEX IF NOT EXISTS idx_conflicts_type ON booking_conflicts(conflict_type);

	CREATE TABLE IF NOT EXISTS conflict_detection_runs (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		detected_count INTEGER NOT NULL DEFAULT 0,
		persisted_count INTEGER NOT NULL DEFAULT 0,
		persist_failures INTEGER NOT NULL DEFAULT 0,
		failed_detectors TEXT NOT NULL DEFAULT '[]',
		cancelled BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_detection_runs_property ON conflict_detection_runs(property_id, started_at);
	`

	_, err := db.Exec(schema)
	return err
}
