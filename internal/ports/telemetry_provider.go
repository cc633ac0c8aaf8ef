package ports

import (
	"context"
	"rail-hazard-monitor/internal/domain"
)

// Contract for reading a vehicle's position and speed and for delivering speed commands.
// A simulator applies commands directly; a real actuator may treat them as advisory.
type TelemetryProvider interface {
	// Return the vehicle's current position.
	CurrentPosition(ctx context.Context) (domain.GeoPoint, error)
	// Return the vehicle's current speed in km/h.
	CurrentSpeed(ctx context.Context) (float64, error)
	// Deliver the speed command computed for this tick.
	ApplySpeedCommand(ctx context.Context, cmd domain.SpeedCommand) error
}
