package geocode

import (
	"context"
	"errors"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
)

// FallbackLocator asks each locator in turn, moving on only when the
// previous one reports domain.ErrStationNotFound.
type FallbackLocator []ports.StationLocator

func (f FallbackLocator) Locate(ctx context.Context, stationCode string) (domain.GeoPoint, error) {
	err := domain.ErrStationNotFound
	for _, l := range f {
		var p domain.GeoPoint
		p, err = l.Locate(ctx, stationCode)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrStationNotFound) {
			return domain.GeoPoint{}, err
		}
	}
	return domain.GeoPoint{}, err
}
