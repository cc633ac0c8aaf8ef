package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
)

// SQL-backed implementation of the TrainRepository port.
type SQLTrainRepository struct{ DB *sql.DB }

func NewSQLTrainRepository(db *sql.DB) *SQLTrainRepository {
	return &SQLTrainRepository{DB: db}
}

// Return all registered trains ordered by id.
func (r *SQLTrainRepository) ListTrains(ctx context.Context) (_ []*domain.Train, err error) {
	defer obs.Time(ctx, "trains.ListTrains")(&err)

	if r.DB == nil {
		return nil, errors.New("sql train repository: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT
		train_id,
		train_number,
		train_name,
		nominal_speed,
		lon,
		lat,
		start_station
	FROM trains
	ORDER BY train_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list trains: query trains table: %w", err)
	}
	defer rows.Close()

	trains := make([]*domain.Train, 0, 16)
	for rows.Next() {
		t := &domain.Train{}
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&t.TrainID, &t.TrainNumber, &t.TrainName, &t.NominalSpeed, &lon, &lat, &t.StartStation); err != nil {
			return nil, fmt.Errorf("list trains: scan row: %w", err)
		}
		t.Location = nullablePoint(lon, lat)
		trains = append(trains, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trains: row iteration: %w", err)
	}

	return trains, nil
}
