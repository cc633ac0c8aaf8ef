package domain

import (
	"errors"
	"time"
)

var ErrStationNotFound = errors.New("station not found")

// Snapshot of a moving vehicle as reported by its telemetry provider.
type VehicleTelemetry struct {
	VehicleID    string
	Position     GeoPoint
	CurrentSpeed float64
	NominalSpeed float64
	LastUpdated  time.Time
}

// A registered train eligible for speed monitoring.
// Location is the last known position; when it is nil the train starts
// at StartStation.
type Train struct {
	TrainID      string
	TrainNumber  string
	TrainName    string
	NominalSpeed float64
	Location     *GeoPoint
	StartStation string
}

// A railway station with a fixed location.
type Station struct {
	StationCode string
	StationName string
	Location    GeoPoint
}
