package services

import (
	"math"
	"rail-hazard-monitor/internal/domain"
	"sort"
)

// Return the alerts within radiusKm of position, annotated with their distance.
//
// Only active alerts with a usable origin are considered. Alerts without one
// are dropped silently; they are not an error. The radius is inclusive.
// Results are ordered by ascending distance, ties by alert id.
func FilterNearby(alerts []domain.HazardAlert, position domain.GeoPoint, radiusKm float64) []domain.ProximityResult {
	if !position.Valid() || math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil
	}

	out := make([]domain.ProximityResult, 0, len(alerts))
	for _, a := range alerts {
		if a.Status != domain.StatusActive || !a.HasUsableOrigin() {
			continue
		}

		d := domain.Distance(position, *a.Origin)
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			continue
		}
		if d <= radiusKm {
			out = append(out, domain.ProximityResult{Alert: a, DistanceKm: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Alert.ID < out[j].Alert.ID
	})

	return out
}
