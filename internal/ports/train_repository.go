package ports

import (
	"context"
	"rail-hazard-monitor/internal/domain"
)

// Port: a boundary for retrieving the trains to monitor.
type TrainRepository interface {
	// Retrieve all registered trains.
	ListTrains(ctx context.Context) ([]*domain.Train, error)
}
