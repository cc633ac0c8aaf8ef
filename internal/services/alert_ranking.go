package services

import (
	"rail-hazard-monitor/internal/domain"
	"sort"
)

// Order alerts for display: severity (critical first), then status
// (active first), then newest first. The sort is stable and the input
// slice is left untouched.
func RankAlerts(alerts []domain.HazardAlert) []domain.HazardAlert {
	out := make([]domain.HazardAlert, len(alerts))
	copy(out, alerts)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() < b.Status.Rank()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return out
}
