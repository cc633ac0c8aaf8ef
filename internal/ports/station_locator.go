package ports

import (
	"context"
	"rail-hazard-monitor/internal/domain"
)

// Contract for resolving a station code to coordinates.
type StationLocator interface {
	// Return the station's location, or domain.ErrStationNotFound.
	Locate(ctx context.Context, stationCode string) (domain.GeoPoint, error)
}
