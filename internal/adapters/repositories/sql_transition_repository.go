package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	platformdb "rail-hazard-monitor/internal/platform/db"
	"time"
)

// SQL-backed speed-transition history. It is a TransitionSink that writes
// one row per event and serves the per-vehicle history.
type SQLTransitionRepository struct {
	DB     *sql.DB
	Driver string
}

func NewSQLTransitionRepository(db *sql.DB, driver string) *SQLTransitionRepository {
	return &SQLTransitionRepository{DB: db, Driver: driver}
}

func (r *SQLTransitionRepository) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	if r.DB == nil {
		return errors.New("sql transition repository: DB is nil")
	}

	_, err := r.DB.ExecContext(ctx, bind(r.Driver, `
	INSERT INTO speed_transitions (
		event_id,
		vehicle_id,
		from_phase,
		to_phase,
		tier,
		target_speed,
		current_speed,
		nearest_distance_km,
		alert_id,
		at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`),
		e.EventID,
		e.VehicleID,
		string(e.From),
		string(e.To),
		string(e.Tier),
		e.TargetSpeed,
		e.CurrentSpeed,
		e.NearestDistanceKm,
		e.AlertID,
		timeArg(r.Driver, e.At),
	)
	if err != nil {
		return fmt.Errorf("insert transition event_id=%s: %w", e.EventID, err)
	}

	return nil
}

// Return the vehicle's most recent transitions, newest first.
func (r *SQLTransitionRepository) ListTransitions(ctx context.Context, vehicleID string, limit int) ([]domain.TransitionEvent, error) {
	if r.DB == nil {
		return nil, errors.New("sql transition repository: DB is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, bind(r.Driver, `
	SELECT
		event_id,
		vehicle_id,
		from_phase,
		to_phase,
		tier,
		target_speed,
		current_speed,
		nearest_distance_km,
		alert_id,
		at
	FROM speed_transitions
	WHERE vehicle_id = ?
	ORDER BY at DESC
	LIMIT ?;
	`), vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: query speed_transitions table: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TransitionEvent, 0, limit)
	for rows.Next() {
		var e domain.TransitionEvent
		var from, to, tier string
		var nearest sql.NullFloat64

		var at any
		var atTime time.Time
		var atMillis int64
		if r.Driver == platformdb.DriverPostgres {
			at = &atTime
		} else {
			at = &atMillis
		}

		if err := rows.Scan(&e.EventID, &e.VehicleID, &from, &to, &tier, &e.TargetSpeed, &e.CurrentSpeed, &nearest, &e.AlertID, at); err != nil {
			return nil, fmt.Errorf("list transitions: scan row: %w", err)
		}

		if r.Driver != platformdb.DriverPostgres {
			atTime = time.UnixMilli(atMillis)
		}
		e.At = atTime.UTC()
		e.From = domain.Phase(from)
		e.To = domain.Phase(to)
		e.Tier = domain.Tier(tier)
		if nearest.Valid {
			d := nearest.Float64
			e.NearestDistanceKm = &d
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitions: row iteration: %w", err)
	}

	return events, nil
}
