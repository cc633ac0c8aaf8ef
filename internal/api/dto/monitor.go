package dto

import "time"

type MonitorResponse struct {
	VehicleID         string            `json:"vehicle_id"`
	Phase             string            `json:"phase"`
	Tier              string            `json:"tier,omitempty"`
	NominalSpeed      float64           `json:"nominal_speed_kmh"`
	CurrentSpeed      float64           `json:"current_speed_kmh"`
	TargetSpeed       float64           `json:"target_speed_kmh"`
	NearestDistanceKm *float64          `json:"nearest_distance_km"`
	SpeedReduction    string            `json:"speed_reduction"`
	NearbyAlerts      int               `json:"nearby_alerts"`
	DecisiveAlertID   string            `json:"decisive_alert_id,omitempty"`
	Position          *LocationResponse `json:"position"`
	Stale             bool              `json:"stale"`
	LastError         string            `json:"last_error,omitempty"`
	LastTransitionAt  time.Time         `json:"last_transition_at"`
	LastAttemptAt     *time.Time        `json:"last_attempt_at"`
	LastSuccessAt     *time.Time        `json:"last_success_at"`
	Ticks             int64             `json:"ticks"`
	SkippedTicks      int64             `json:"skipped_ticks"`
}

type ListMonitorsResponse struct {
	Monitors []MonitorResponse `json:"monitors"`
}

type TransitionResponse struct {
	EventID           string    `json:"event_id"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Tier              string    `json:"tier,omitempty"`
	TargetSpeed       float64   `json:"target_speed_kmh"`
	CurrentSpeed      float64   `json:"current_speed_kmh"`
	NearestDistanceKm *float64  `json:"nearest_distance_km"`
	AlertID           string    `json:"alert_id,omitempty"`
	At                time.Time `json:"at"`
}

type ListTransitionsResponse struct {
	VehicleID   string               `json:"vehicle_id"`
	Transitions []TransitionResponse `json:"transitions"`
}
