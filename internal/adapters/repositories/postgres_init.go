package repositories

import (
	"context"
	"database/sql"
)

// Initialize the Postgres schema used by the SQL repositories and the transition log.
func InitPostgresSchema(ctx context.Context, db *sql.DB) error {
	return execSchema(ctx, db, "init postgres schema", []string{
		`
	CREATE TABLE IF NOT EXISTS cameras (
		camera_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION
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
		created_at TIMESTAMPTZ NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_alerts_status_created
	ON alerts(status, created_at DESC);
	`,
		`
	CREATE TABLE IF NOT EXISTS stations (
		station_code TEXT PRIMARY KEY,
		station_name TEXT NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS trains (
		train_id TEXT PRIMARY KEY,
		train_number TEXT NOT NULL,
		train_name TEXT NOT NULL DEFAULT '',
		nominal_speed DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		start_station TEXT NOT NULL DEFAULT ''
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS speed_transitions (
		event_id UUID PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		from_phase TEXT NOT NULL,
		to_phase TEXT NOT NULL,
		tier TEXT NOT NULL,
		target_speed DOUBLE PRECISION NOT NULL,
		current_speed DOUBLE PRECISION NOT NULL,
		nearest_distance_km DOUBLE PRECISION,
		alert_id TEXT NOT NULL DEFAULT '',
		at TIMESTAMPTZ NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_speed_transitions_vehicle_at
	ON speed_transitions(vehicle_id, at DESC);
	`,
	})
}
