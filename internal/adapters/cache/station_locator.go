package cache

import (
	"context"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
	"rail-hazard-monitor/internal/ports"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStationTTL is how long a resolved station position is trusted.
	DefaultStationTTL = 24 * time.Hour
	// DefaultLookupTimeout bounds one shared upstream lookup, geocoder retries included.
	DefaultLookupTimeout = 10 * time.Second
)

// CachedStationLocator fronts a StationLocator with a TTL cache. Concurrent
// misses for the same station share one upstream lookup, which runs detached
// from the callers' cancellation and is bounded by timeout. Failures are not cached.
type CachedStationLocator struct {
	next    ports.StationLocator
	cache   *TTLCache[string, domain.GeoPoint]
	timeout time.Duration
	group   singleflight.Group
}

func NewCachedStationLocator(next ports.StationLocator, cache *TTLCache[string, domain.GeoPoint], timeout time.Duration) *CachedStationLocator {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &CachedStationLocator{next: next, cache: cache, timeout: timeout}
}

func (l *CachedStationLocator) Locate(ctx context.Context, stationCode string) (_ domain.GeoPoint, err error) {
	code := strings.ToUpper(strings.TrimSpace(stationCode))
	if code == "" {
		return domain.GeoPoint{}, fmt.Errorf("locate station: empty code: %w", domain.ErrStationNotFound)
	}

	if p, ok := l.cache.Get(code); ok {
		return p, nil
	}

	defer obs.Time(ctx, "station.locate")(&err)

	ch := l.group.DoChan(code, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		p, err := l.next.Locate(lookupCtx, code)
		if err != nil {
			return domain.GeoPoint{}, err
		}
		if !p.Valid() {
			return domain.GeoPoint{}, fmt.Errorf("locate station %s: invalid coordinates %v", code, p)
		}
		l.cache.Set(code, p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.GeoPoint{}, res.Err
		}
		return res.Val.(domain.GeoPoint), nil
	}
}
