package publisher

import (
	"encoding/json"
	"fmt"
	"rail-hazard-monitor/internal/domain"
)

// Wire form of a phase transition, shared by every broker sink.
type transitionMessage struct {
	EventID           string   `json:"event_id"`
	VehicleID         string   `json:"vehicle_id"`
	From              string   `json:"from"`
	To                string   `json:"to"`
	Tier              string   `json:"tier,omitempty"`
	TargetSpeed       float64  `json:"target_speed_kmh"`
	CurrentSpeed      float64  `json:"current_speed_kmh"`
	NearestDistanceKm *float64 `json:"nearest_distance_km,omitempty"`
	SpeedReduction    string   `json:"speed_reduction"`
	AlertID           string   `json:"alert_id,omitempty"`
	Timestamp         int64    `json:"timestamp"`
}

func encodeTransition(e domain.TransitionEvent) ([]byte, error) {
	body, err := json.Marshal(transitionMessage{
		EventID:           e.EventID,
		VehicleID:         e.VehicleID,
		From:              string(e.From),
		To:                string(e.To),
		Tier:              string(e.Tier),
		TargetSpeed:       e.TargetSpeed,
		CurrentSpeed:      e.CurrentSpeed,
		NearestDistanceKm: e.NearestDistanceKm,
		SpeedReduction:    domain.SpeedReductionLabel(e.NearestDistanceKm),
		AlertID:           e.AlertID,
		Timestamp:         e.At.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transition %s: %w", e.EventID, err)
	}
	return body, nil
}
