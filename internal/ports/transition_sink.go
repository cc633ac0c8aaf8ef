package ports

import (
	"context"
	"rail-hazard-monitor/internal/domain"
)

// Contract for publishing speed-control phase changes to downstream consumers.
type TransitionSink interface {
	PublishTransition(ctx context.Context, event domain.TransitionEvent) error
}

// Port: a boundary for reading a vehicle's recorded phase changes.
type TransitionHistory interface {
	// Return the vehicle's most recent transitions, newest first.
	ListTransitions(ctx context.Context, vehicleID string, limit int) ([]domain.TransitionEvent, error)
}
