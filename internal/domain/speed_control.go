package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidSpeed        = errors.New("invalid speed")
	ErrInvalidNominalSpeed = errors.New("invalid nominal speed")
	ErrInvalidDistance     = errors.New("invalid distance")
	ErrInvalidPosition     = errors.New("invalid position")
	ErrUnknownTier         = errors.New("unknown restriction tier")
)

// Restriction bucket chosen by the severity classifier. TierNone means no restriction.
type Tier string

const (
	TierNone Tier = ""
	TierA    Tier = "A"
	TierB    Tier = "B"
	TierC    Tier = "C"
)

// Target speed and per-tick deceleration applied while a tier is active.
type TierPolicy struct {
	TargetSpeed  float64
	DecelPerTick float64
}

// Tunable speed-control policy. All speeds are km/h, rates are km/h per tick.
//
// The proximity check is isotropic: a hazard behind the train restricts it
// exactly like one ahead. Heading is not part of the policy.
type SpeedPolicy struct {
	RadiusKm     float64
	AccelPerTick float64
	// Upper tolerance above nominal speed before the loop pulls speed back down.
	OvershootKmh float64
	// When set, deceleration stops at the tier target instead of continuing to a stop.
	HoldAtTarget bool
	Tiers        map[Tier]TierPolicy
}

func DefaultSpeedPolicy() SpeedPolicy {
	return SpeedPolicy{
		RadiusKm:     2,
		AccelPerTick: 0.5,
		OvershootKmh: 5,
		Tiers: map[Tier]TierPolicy{
			TierA: {TargetSpeed: 20, DecelPerTick: 5},
			TierB: {TargetSpeed: 40, DecelPerTick: 3},
			TierC: {TargetSpeed: 60, DecelPerTick: 1.5},
		},
	}
}

// Output of the severity classifier for one vehicle at one tick.
type Classification struct {
	Tier        Tier
	TargetSpeed float64
	// Alert that decided the tier (the closest one within the winning tier).
	AlertID           string
	NearestDistanceKm *float64
	NearbyCount       int
}

func (c Classification) Restricted() bool { return c.Tier != TierNone }

type Phase string

const (
	PhaseMonitoring  Phase = "monitoring"
	PhaseSlowingDown Phase = "slowing_down"
	PhaseStopped     Phase = "stopped"
)

// Per-vehicle control state. Only Tick produces new values.
type SpeedControlState struct {
	Phase             Phase
	Tier              Tier
	CurrentSpeed      float64
	TargetSpeed       float64
	NearestDistanceKm *float64
	LastTransitionAt  time.Time
}

// Initial state for a vehicle entering monitoring.
func NewSpeedControlState(speed float64, at time.Time) SpeedControlState {
	return SpeedControlState{
		Phase:            PhaseMonitoring,
		CurrentSpeed:     speed,
		TargetSpeed:      speed,
		LastTransitionAt: at,
	}
}

type TickInput struct {
	Classification Classification
	CurrentSpeed   float64
	NominalSpeed   float64
	At             time.Time
}

// Speed command emitted for one tick. Speed is the commanded speed; Delta is
// the change relative to the speed reported at the start of the tick.
type SpeedCommand struct {
	Speed       float64
	Delta       float64
	Restriction float64
	Tier        Tier
	Phase       Phase
	IssuedAt    time.Time
}

// TickAnomaly is a non-fatal diagnostic for a tick that was treated as a no-op.
type TickAnomaly struct {
	Field string
	Value float64
	Err   error
}

func (a *TickAnomaly) Error() string {
	return fmt.Sprintf("tick anomaly: %s=%v: %v", a.Field, a.Value, a.Err)
}

func (a *TickAnomaly) Unwrap() error { return a.Err }

// Tick advances the speed-control state machine by one step.
//
// Rules, in order: with no restriction the vehicle accelerates toward nominal
// speed in Monitoring; with a restriction it decelerates by the tier rate and
// is SlowingDown while moving; reaching zero under a restriction means Stopped.
// Invalid input leaves the state untouched and returns a *TickAnomaly.
func Tick(state SpeedControlState, in TickInput, policy SpeedPolicy) (SpeedControlState, SpeedCommand, error) {
	if err := validateTickInput(in); err != nil {
		return state, SpeedCommand{}, err
	}

	next := state
	speed := in.CurrentSpeed
	c := in.Classification

	if !c.Restricted() {
		ceiling := in.NominalSpeed + policy.OvershootKmh
		switch {
		case speed < in.NominalSpeed:
			speed = math.Min(in.NominalSpeed, speed+policy.AccelPerTick)
		case speed > ceiling:
			speed = ceiling
		}
		next.Phase = PhaseMonitoring
		next.Tier = TierNone
		next.TargetSpeed = in.NominalSpeed
		next.NearestDistanceKm = nil
	} else {
		tp, ok := policy.Tiers[c.Tier]
		if !ok {
			return state, SpeedCommand{}, &TickAnomaly{Field: "tier", Err: fmt.Errorf("%w: %q", ErrUnknownTier, c.Tier)}
		}

		floor := 0.0
		if policy.HoldAtTarget {
			floor = c.TargetSpeed
		}
		if speed > floor {
			speed = math.Max(floor, speed-tp.DecelPerTick)
		}

		if speed > 0 {
			next.Phase = PhaseSlowingDown
		} else {
			speed = 0
			next.Phase = PhaseStopped
		}
		next.Tier = c.Tier
		next.TargetSpeed = c.TargetSpeed
		next.NearestDistanceKm = copyFloat(c.NearestDistanceKm)
	}

	next.CurrentSpeed = speed
	if next.Phase != state.Phase {
		next.LastTransitionAt = in.At
	}

	cmd := SpeedCommand{
		Speed:       speed,
		Delta:       speed - in.CurrentSpeed,
		Restriction: next.TargetSpeed,
		Tier:        next.Tier,
		Phase:       next.Phase,
		IssuedAt:    in.At,
	}
	return next, cmd, nil
}

func validateTickInput(in TickInput) error {
	if !finite(in.CurrentSpeed) || in.CurrentSpeed < 0 {
		return &TickAnomaly{Field: "current_speed", Value: in.CurrentSpeed, Err: ErrInvalidSpeed}
	}
	if !finite(in.NominalSpeed) || in.NominalSpeed <= 0 {
		return &TickAnomaly{Field: "nominal_speed", Value: in.NominalSpeed, Err: ErrInvalidNominalSpeed}
	}
	if d := in.Classification.NearestDistanceKm; d != nil && (!finite(*d) || *d < 0) {
		return &TickAnomaly{Field: "nearest_distance_km", Value: *d, Err: ErrInvalidDistance}
	}
	return nil
}

// SpeedReductionLabel describes how strongly a hazard at the given distance
// affects a train, for display next to the distance readout.
func SpeedReductionLabel(distanceKm *float64) string {
	if distanceKm == nil {
		return "None"
	}
	d := *distanceKm
	switch {
	case d <= 1:
		return "Full Stop (Aggressive)"
	case d <= 2:
		return "Significant Reduction (Moderate)"
	case d <= 5:
		return "Slight Reduction"
	default:
		return "None"
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
