package services

import "rail-hazard-monitor/internal/domain"

// Map the nearby alerts of one vehicle to a single speed restriction.
//
// The most restrictive tier wins regardless of which alert is physically
// closer: critical/high severity is tier A, animal detections are tier B,
// anything else is tier C. An empty set means no restriction and the target
// is the vehicle's nominal speed. Input is expected in ascending distance
// order (as returned by FilterNearby), so the reported alert is the closest
// one of the winning tier.
func Classify(nearby []domain.ProximityResult, policy domain.SpeedPolicy, nominalSpeed float64) domain.Classification {
	if len(nearby) == 0 {
		return domain.Classification{Tier: domain.TierNone, TargetSpeed: nominalSpeed}
	}

	var decisive *domain.ProximityResult
	best := domain.TierNone
	for i := range nearby {
		tier := tierOf(nearby[i].Alert)
		if best == domain.TierNone || tierRank(tier) < tierRank(best) {
			best = tier
			decisive = &nearby[i]
		}
	}

	nearest := nearby[0].DistanceKm
	for _, r := range nearby[1:] {
		if r.DistanceKm < nearest {
			nearest = r.DistanceKm
		}
	}

	return domain.Classification{
		Tier:              best,
		TargetSpeed:       policy.Tiers[best].TargetSpeed,
		AlertID:           decisive.Alert.ID,
		NearestDistanceKm: &nearest,
		NearbyCount:       len(nearby),
	}
}

func tierOf(a domain.HazardAlert) domain.Tier {
	switch {
	case a.Severity == domain.SeverityCritical || a.Severity == domain.SeverityHigh:
		return domain.TierA
	case a.IsAnimal():
		return domain.TierB
	default:
		return domain.TierC
	}
}

func tierRank(t domain.Tier) int {
	switch t {
	case domain.TierA:
		return 0
	case domain.TierB:
		return 1
	default:
		return 2
	}
}
