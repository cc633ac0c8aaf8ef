package ports

import (
	"context"
	"rail-hazard-monitor/internal/domain"
)

// Contract for the recent-alert query consumed by the control loop.
type AlertSource interface {
	// Return alerts matching the query, newest first, at most query.Limit of them.
	ListRecentActive(ctx context.Context, query domain.AlertQuery) ([]domain.HazardAlert, error)
}

// Port: a boundary for retrieving alerts for display.
type AlertRepository interface {
	AlertSource
	// Return alerts matching the filter, newest first.
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.HazardAlert, error)
}
