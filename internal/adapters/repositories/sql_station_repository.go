package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
)

// SQL-backed station registry; implements the StationLocator port.
type SQLStationRepository struct {
	DB     *sql.DB
	Driver string
}

func NewSQLStationRepository(db *sql.DB, driver string) *SQLStationRepository {
	return &SQLStationRepository{DB: db, Driver: driver}
}

// Return the station's location, or domain.ErrStationNotFound.
func (r *SQLStationRepository) Locate(ctx context.Context, stationCode string) (_ domain.GeoPoint, err error) {
	defer obs.Time(ctx, "stations.Locate")(&err)

	if r.DB == nil {
		return domain.GeoPoint{}, errors.New("sql station repository: DB is nil")
	}

	q := bind(r.Driver, `
	SELECT lon, lat
	FROM stations
	WHERE station_code = ?;
	`)

	var p domain.GeoPoint
	err = r.DB.QueryRowContext(ctx, q, stationCode).Scan(&p.Lon, &p.Lat)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeoPoint{}, fmt.Errorf("locate station %q: %w", stationCode, domain.ErrStationNotFound)
	}
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("locate station %q: query stations table: %w", stationCode, err)
	}

	return p, nil
}

// Return all stations ordered by code.
func (r *SQLStationRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	if r.DB == nil {
		return nil, errors.New("sql station repository: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT
		station_code,
		station_name,
		lon,
		lat
	FROM stations
	ORDER BY station_code;
	`)
	if err != nil {
		return nil, fmt.Errorf("list stations: query stations table: %w", err)
	}
	defer rows.Close()

	stations := make([]domain.Station, 0, 16)
	for rows.Next() {
		var s domain.Station
		if err := rows.Scan(&s.StationCode, &s.StationName, &s.Location.Lon, &s.Location.Lat); err != nil {
			return nil, fmt.Errorf("list stations: scan row: %w", err)
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stations: row iteration: %w", err)
	}

	return stations, nil
}
