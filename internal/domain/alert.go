package domain

import "time"

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertType string

const (
	AlertAnimalDetected   AlertType = "animal_detected"
	AlertAnimalPersistent AlertType = "animal_persistent"
	AlertTrainApproaching AlertType = "train_approaching"
	AlertSpeedReduction   AlertType = "speed_reduction"
	AlertEmergency        AlertType = "emergency"
	AlertOther            AlertType = "other"
)

type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusFalseAlarm   AlertStatus = "false_alarm"
)

// A hazard reported by a trackside camera.
// Alerts are created and mutated elsewhere; the control loop only reads them.
// Origin is the reporting camera's location and may be absent.
type HazardAlert struct {
	ID        string
	CameraID  string
	Severity  AlertSeverity
	Type      AlertType
	Status    AlertStatus
	Origin    *GeoPoint
	CreatedAt time.Time
	Notes     string
}

// IsAnimal reports whether the alert was raised by an animal detection.
func (a HazardAlert) IsAnimal() bool {
	return a.Type == AlertAnimalDetected || a.Type == AlertAnimalPersistent
}

// HasUsableOrigin reports whether the alert can take part in distance checks.
func (a HazardAlert) HasUsableOrigin() bool {
	return a.Origin != nil && a.Origin.Valid()
}

// Display rank of a severity; lower sorts first. Unknown values sort last.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Display rank of a status; lower sorts first. Unknown values sort last.
func (s AlertStatus) Rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusAcknowledged:
		return 1
	case StatusResolved:
		return 2
	case StatusFalseAlarm:
		return 3
	default:
		return 4
	}
}

// Distance between a vehicle and a nearby alert, recomputed every tick.
type ProximityResult struct {
	Alert      HazardAlert
	DistanceKm float64
}

// Parameters of the recent-alert query consumed by the control loop.
type AlertQuery struct {
	Status AlertStatus
	Since  time.Time
	Limit  int
}

// Display-side alert listing filter. Zero values mean "any".
type AlertFilter struct {
	Status   AlertStatus
	Type     AlertType
	Severity AlertSeverity
	CameraID string
	From     *time.Time
	To       *time.Time
	Limit    int
}
