package dto

import "time"

type LocationResponse struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type AlertResponse struct {
	AlertID   string            `json:"alert_id"`
	CameraID  string            `json:"camera_id"`
	Severity  string            `json:"severity"`
	AlertType string            `json:"alert_type"`
	Status    string            `json:"status"`
	Location  *LocationResponse `json:"location"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type ListAlertsResponse struct {
	Alerts []AlertResponse `json:"alerts"`
}
