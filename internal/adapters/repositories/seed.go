package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"rail-hazard-monitor/internal/domain"
	"strings"
	"time"
)

type CameraSeed struct {
	CameraID  string   `json:"camera_id"`
	Name      string   `json:"name"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

type StationSeed struct {
	StationCode string  `json:"station_code"`
	StationName string  `json:"station_name"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

type TrainSeed struct {
	TrainID      string   `json:"train_id"`
	TrainNumber  string   `json:"train_number"`
	TrainName    string   `json:"train_name"`
	NominalSpeed float64  `json:"nominal_speed"`
	Longitude    *float64 `json:"longitude"`
	Latitude     *float64 `json:"latitude"`
	StartStation string   `json:"start_station"`
}

// AlertSeed creates an alert either at CreatedAt or AgeSeconds before the seeding time.
type AlertSeed struct {
	AlertID    string     `json:"alert_id"`
	CameraID   string     `json:"camera_id"`
	Severity   string     `json:"severity"`
	AlertType  string     `json:"alert_type"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes"`
	CreatedAt  *time.Time `json:"created_at"`
	AgeSeconds int        `json:"age_seconds"`
}

type Seed struct {
	Cameras  []CameraSeed  `json:"cameras"`
	Stations []StationSeed `json:"stations"`
	Trains   []TrainSeed   `json:"trains"`
	Alerts   []AlertSeed   `json:"alerts"`
}

// Populate the database with demo data from a JSON file. Existing rows with
// the same keys are overwritten.
func SeedFromJSON(ctx context.Context, db *sql.DB, driver, jsonPath string, now time.Time) error {
	if db == nil {
		return errors.New("seed: DB is nil")
	}

	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}

	if err := validateSeed(&data); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range data.Cameras {
		_, err := tx.ExecContext(ctx, bind(driver, `
	INSERT INTO cameras (camera_id, name, lon, lat)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (camera_id) DO UPDATE SET
		name = excluded.name, lon = excluded.lon, lat = excluded.lat;
	`), c.CameraID, c.Name, c.Longitude, c.Latitude)
		if err != nil {
			return fmt.Errorf("seed: insert camera_id=%s: %w", c.CameraID, err)
		}
	}

	for _, s := range data.Stations {
		_, err := tx.ExecContext(ctx, bind(driver, `
	INSERT INTO stations (station_code, station_name, lon, lat)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (station_code) DO UPDATE SET
		station_name = excluded.station_name, lon = excluded.lon, lat = excluded.lat;
	`), s.StationCode, s.StationName, s.Longitude, s.Latitude)
		if err != nil {
			return fmt.Errorf("seed: insert station_code=%s: %w", s.StationCode, err)
		}
	}

	for _, t := range data.Trains {
		_, err := tx.ExecContext(ctx, bind(driver, `
	INSERT INTO trains (train_id, train_number, train_name, nominal_speed, lon, lat, start_station)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (train_id) DO UPDATE SET
		train_number = excluded.train_number, train_name = excluded.train_name,
		nominal_speed = excluded.nominal_speed, lon = excluded.lon, lat = excluded.lat,
		start_station = excluded.start_station;
	`), t.TrainID, t.TrainNumber, t.TrainName, t.NominalSpeed, t.Longitude, t.Latitude, t.StartStation)
		if err != nil {
			return fmt.Errorf("seed: insert train_id=%s: %w", t.TrainID, err)
		}
	}

	for _, a := range data.Alerts {
		created := now.Add(-time.Duration(a.AgeSeconds) * time.Second)
		if a.CreatedAt != nil {
			created = *a.CreatedAt
		}

		_, err := tx.ExecContext(ctx, bind(driver, `
	INSERT INTO alerts (alert_id, camera_id, severity, alert_type, status, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (alert_id) DO UPDATE SET
		camera_id = excluded.camera_id, severity = excluded.severity, alert_type = excluded.alert_type,
		status = excluded.status, notes = excluded.notes, created_at = excluded.created_at;
	`), a.AlertID, a.CameraID, a.Severity, a.AlertType, a.Status, a.Notes, timeArg(driver, created))
		if err != nil {
			return fmt.Errorf("seed: insert alert_id=%s: %w", a.AlertID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}

func validateSeed(s *Seed) error {
	for i, c := range s.Cameras {
		if strings.TrimSpace(c.CameraID) == "" {
			return fmt.Errorf("camera at index %d: camera_id cannot be empty", i+1)
		}
	}

	for i, st := range s.Stations {
		if strings.TrimSpace(st.StationCode) == "" {
			return fmt.Errorf("station at index %d: station_code cannot be empty", i+1)
		}
		if !(domain.GeoPoint{Lon: st.Longitude, Lat: st.Latitude}).Valid() {
			return fmt.Errorf("station %s: invalid coordinates", st.StationCode)
		}
	}

	for i, t := range s.Trains {
		if strings.TrimSpace(t.TrainID) == "" {
			return fmt.Errorf("train at index %d: train_id cannot be empty", i+1)
		}
		if t.NominalSpeed <= 0 {
			return fmt.Errorf("train %s: nominal_speed must be positive", t.TrainID)
		}
		if (t.Longitude == nil) != (t.Latitude == nil) {
			return fmt.Errorf("train %s: longitude and latitude must be set together", t.TrainID)
		}
	}

	for i, a := range s.Alerts {
		if strings.TrimSpace(a.AlertID) == "" {
			return fmt.Errorf("alert at index %d: alert_id cannot be empty", i+1)
		}
		if domain.AlertSeverity(a.Severity).Rank() > 3 {
			return fmt.Errorf("alert %s: unknown severity %q", a.AlertID, a.Severity)
		}
		if domain.AlertStatus(a.Status).Rank() > 3 {
			return fmt.Errorf("alert %s: unknown status %q", a.AlertID, a.Status)
		}
	}

	return nil
}
