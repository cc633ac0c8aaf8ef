package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
	"strings"
	"time"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// ORSStationLocator resolves station codes missing from the registry with the
// OpenRouteService geocoder (/geocode/search), searching for the code as a
// railway station inside country. Results are not cached here; wrap it in
// cache.CachedStationLocator.
type ORSStationLocator struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	country     string
	maxAttempts int
	backoff     time.Duration
}

func NewORSStationLocator(apiKey, country string) (*ORSStationLocator, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	return &ORSStationLocator{
		session:     &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		baseURL:     "https://api.openrouteservice.org",
		country:     country,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}, nil
}

func (o *ORSStationLocator) Locate(ctx context.Context, stationCode string) (_ domain.GeoPoint, err error) {
	defer obs.Time(ctx, "ors.geocode_station")(&err)

	code := strings.Join(strings.Fields(stationCode), " ")
	if code == "" {
		return domain.GeoPoint{}, fmt.Errorf("geocode station: empty code: %w", domain.ErrStationNotFound)
	}

	endpoint := o.baseURL + "/geocode/search"
	query := map[string]string{
		"text": code + " railway station",
		"size": "1",
	}
	if o.country != "" {
		query["boundary.country"] = o.country
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, endpoint, query)
	})
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode station %s: %w", code, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode station %s: decode response: %w", code, err)
	}

	if len(decoded.Features) == 0 {
		return domain.GeoPoint{}, fmt.Errorf("geocode station %s: no results: %w", code, domain.ErrStationNotFound)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return domain.GeoPoint{}, fmt.Errorf("geocode station %s: invalid coordinate format", code)
	}

	p := domain.GeoPoint{Lon: coords[0], Lat: coords[1]}
	if !p.Valid() {
		return domain.GeoPoint{}, fmt.Errorf("geocode station %s: %w", code, domain.ErrInvalidPosition)
	}
	return p, nil
}
