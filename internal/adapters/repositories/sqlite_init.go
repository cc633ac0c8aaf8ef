package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the SQLite database schema. Timestamps are stored as unix milliseconds.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return execSchema(ctx, db, "init sqlite schema", []string{
		`
	CREATE TABLE IF NOT EXISTS cameras (
		camera_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		lon REAL,
		lat REAL
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_alerts_status_created
	ON alerts(status, created_at);
	`,
		`
	CREATE TABLE IF NOT EXISTS stations (
		station_code TEXT PRIMARY KEY,
		station_name TEXT NOT NULL,
		lon REAL NOT NULL,
		lat REAL NOT NULL
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS trains (
		train_id TEXT PRIMARY KEY,
		train_number TEXT NOT NULL,
		train_name TEXT NOT NULL DEFAULT '',
		nominal_speed REAL NOT NULL,
		lon REAL,
		lat REAL,
		start_station TEXT NOT NULL DEFAULT ''
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS speed_transitions (
		event_id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		from_phase TEXT NOT NULL,
		to_phase TEXT NOT NULL,
		tier TEXT NOT NULL,
		target_speed REAL NOT NULL,
		current_speed REAL NOT NULL,
		nearest_distance_km REAL,
		alert_id TEXT NOT NULL DEFAULT '',
		at INTEGER NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_speed_transitions_vehicle_at
	ON speed_transitions(vehicle_id, at);
	`,
	})
}

func execSchema(ctx context.Context, db *sql.DB, op string, statements []string) error {
	if db == nil {
		return fmt.Errorf("%s: %w", op, errors.New("DB is nil"))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: exec statement #%d: %w", op, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return nil
}
