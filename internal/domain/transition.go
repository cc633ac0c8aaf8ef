package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record of a vehicle changing speed-control phase.
type TransitionEvent struct {
	EventID           string
	VehicleID         string
	From              Phase
	To                Phase
	Tier              Tier
	TargetSpeed       float64
	CurrentSpeed      float64
	NearestDistanceKm *float64
	AlertID           string
	At                time.Time
}

func NewTransitionEvent(vehicleID string, from, to SpeedControlState, alertID string) TransitionEvent {
	return TransitionEvent{
		EventID:           uuid.NewString(),
		VehicleID:         vehicleID,
		From:              from.Phase,
		To:                to.Phase,
		Tier:              to.Tier,
		TargetSpeed:       to.TargetSpeed,
		CurrentSpeed:      to.CurrentSpeed,
		NearestDistanceKm: copyFloat(to.NearestDistanceKm),
		AlertID:           alertID,
		At:                to.LastTransitionAt,
	}
}
