package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func tierA() Classification {
	d := 1.5
	return Classification{Tier: TierA, TargetSpeed: 20, AlertID: "a1", NearestDistanceKm: &d, NearbyCount: 2}
}

func TestTickTierASlowsToStop(t *testing.T) {
	policy := DefaultSpeedPolicy()
	state := NewSpeedControlState(80, t0)

	state, cmd, err := Tick(state, TickInput{Classification: tierA(), CurrentSpeed: 80, NominalSpeed: 80, At: t0.Add(time.Second)}, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Phase != PhaseSlowingDown {
		t.Fatalf("phase = %q, want %q", state.Phase, PhaseSlowingDown)
	}
	if cmd.Speed != 75 || state.CurrentSpeed != 75 {
		t.Fatalf("speed = %v, want 75", cmd.Speed)
	}
	if cmd.Delta != -5 {
		t.Fatalf("delta = %v, want -5", cmd.Delta)
	}
	if state.TargetSpeed != 20 || cmd.Restriction != 20 {
		t.Fatalf("target = %v, want 20", state.TargetSpeed)
	}
	if !state.LastTransitionAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("last transition = %v", state.LastTransitionAt)
	}

	prev := state.CurrentSpeed
	for i := 2; state.Phase != PhaseStopped; i++ {
		if i > 100 {
			t.Fatal("vehicle never stopped")
		}
		state, _, err = Tick(state, TickInput{Classification: tierA(), CurrentSpeed: state.CurrentSpeed, NominalSpeed: 80, At: t0.Add(time.Duration(i) * time.Second)}, policy)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if state.CurrentSpeed >= prev && state.CurrentSpeed != 0 {
			t.Fatalf("tick %d: speed %v did not decrease from %v", i, state.CurrentSpeed, prev)
		}
		if state.CurrentSpeed > 0 && state.Phase != PhaseSlowingDown {
			t.Fatalf("tick %d: phase = %q while moving", i, state.Phase)
		}
		prev = state.CurrentSpeed
	}

	if state.CurrentSpeed != 0 {
		t.Fatalf("stopped at speed %v", state.CurrentSpeed)
	}

	// Stays stopped while the restriction persists.
	again, _, err := Tick(state, TickInput{Classification: tierA(), CurrentSpeed: 0, NominalSpeed: 80, At: t0.Add(time.Hour)}, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Phase != PhaseStopped || again.CurrentSpeed != 0 {
		t.Fatalf("got %q at %v, want stopped at 0", again.Phase, again.CurrentSpeed)
	}
	if !again.LastTransitionAt.Equal(state.LastTransitionAt) {
		t.Fatalf("transition time moved without a phase change")
	}
}

func TestTickDecelerationRatePerTier(t *testing.T) {
	policy := DefaultSpeedPolicy()
	tests := []struct {
		tier Tier
		want float64
	}{
		{TierA, 75},
		{TierB, 77},
		{TierC, 78.5},
	}

	for _, tt := range tests {
		c := Classification{Tier: tt.tier, TargetSpeed: policy.Tiers[tt.tier].TargetSpeed}
		_, cmd, err := Tick(NewSpeedControlState(80, t0), TickInput{Classification: c, CurrentSpeed: 80, NominalSpeed: 80, At: t0}, policy)
		if err != nil {
			t.Fatalf("tier %s: unexpected error: %v", tt.tier, err)
		}
		if cmd.Speed != tt.want {
			t.Errorf("tier %s: speed = %v, want %v", tt.tier, cmd.Speed, tt.want)
		}
	}
}

func TestTickResumesAtAccelRate(t *testing.T) {
	policy := DefaultSpeedPolicy()
	state := SpeedControlState{Phase: PhaseStopped, Tier: TierA, CurrentSpeed: 0, TargetSpeed: 20, LastTransitionAt: t0}

	state, cmd, err := Tick(state, TickInput{CurrentSpeed: 0, NominalSpeed: 80, At: t0.Add(time.Second)}, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Phase != PhaseMonitoring {
		t.Fatalf("phase = %q, want monitoring", state.Phase)
	}
	if cmd.Speed != 0.5 {
		t.Fatalf("speed = %v, want 0.5", cmd.Speed)
	}
	if state.NearestDistanceKm != nil || state.Tier != TierNone {
		t.Fatalf("restriction not cleared: %+v", state)
	}

	ticks := 1
	for state.CurrentSpeed < 80 {
		before := state.CurrentSpeed
		state, _, err = Tick(state, TickInput{CurrentSpeed: state.CurrentSpeed, NominalSpeed: 80, At: t0}, policy)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := state.CurrentSpeed - before; math.Abs(got-0.5) > 1e-9 {
			t.Fatalf("speed step = %v, want 0.5", got)
		}
		ticks++
	}
	if ticks != 160 {
		t.Fatalf("reached nominal after %d ticks, want 160", ticks)
	}

	state, _, _ = Tick(state, TickInput{CurrentSpeed: state.CurrentSpeed, NominalSpeed: 80, At: t0}, policy)
	if state.CurrentSpeed != 80 {
		t.Fatalf("speed = %v, want clamp at 80", state.CurrentSpeed)
	}
}

func TestTickClampsAccelerationAtNominal(t *testing.T) {
	_, cmd, err := Tick(NewSpeedControlState(79.8, t0), TickInput{CurrentSpeed: 79.8, NominalSpeed: 80, At: t0}, DefaultSpeedPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Speed != 80 {
		t.Fatalf("speed = %v, want 80", cmd.Speed)
	}
}

func TestTickPullsBackOvershoot(t *testing.T) {
	_, cmd, err := Tick(NewSpeedControlState(95, t0), TickInput{CurrentSpeed: 95, NominalSpeed: 80, At: t0}, DefaultSpeedPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Speed != 85 {
		t.Fatalf("speed = %v, want 85", cmd.Speed)
	}

	_, cmd, _ = Tick(NewSpeedControlState(83, t0), TickInput{CurrentSpeed: 83, NominalSpeed: 80, At: t0}, DefaultSpeedPolicy())
	if cmd.Speed != 83 {
		t.Fatalf("speed within tolerance changed to %v", cmd.Speed)
	}
}

func TestTickHoldAtTarget(t *testing.T) {
	policy := DefaultSpeedPolicy()
	policy.HoldAtTarget = true

	state := NewSpeedControlState(22, t0)
	state, cmd, err := Tick(state, TickInput{Classification: tierA(), CurrentSpeed: 22, NominalSpeed: 80, At: t0}, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Speed != 20 || state.Phase != PhaseSlowingDown {
		t.Fatalf("got %q at %v, want slowing_down at 20", state.Phase, cmd.Speed)
	}

	state, cmd, _ = Tick(state, TickInput{Classification: tierA(), CurrentSpeed: 20, NominalSpeed: 80, At: t0}, policy)
	if cmd.Speed != 20 {
		t.Fatalf("speed = %v, want hold at 20", cmd.Speed)
	}
}

func TestTickInvalidInputIsNoop(t *testing.T) {
	policy := DefaultSpeedPolicy()
	state := SpeedControlState{Phase: PhaseSlowingDown, Tier: TierB, CurrentSpeed: 50, TargetSpeed: 40, LastTransitionAt: t0}
	nan := math.NaN()
	neg := -1.0

	tests := []struct {
		name string
		in   TickInput
		want error
	}{
		{"negative speed", TickInput{CurrentSpeed: -3, NominalSpeed: 80}, ErrInvalidSpeed},
		{"nan speed", TickInput{CurrentSpeed: nan, NominalSpeed: 80}, ErrInvalidSpeed},
		{"zero nominal", TickInput{CurrentSpeed: 10, NominalSpeed: 0}, ErrInvalidNominalSpeed},
		{"nan distance", TickInput{Classification: Classification{Tier: TierA, TargetSpeed: 20, NearestDistanceKm: &nan}, CurrentSpeed: 10, NominalSpeed: 80}, ErrInvalidDistance},
		{"negative distance", TickInput{Classification: Classification{Tier: TierA, TargetSpeed: 20, NearestDistanceKm: &neg}, CurrentSpeed: 10, NominalSpeed: 80}, ErrInvalidDistance},
		{"unknown tier", TickInput{Classification: Classification{Tier: "Z"}, CurrentSpeed: 10, NominalSpeed: 80}, ErrUnknownTier},
	}

	for _, tt := range tests {
		got, _, err := Tick(state, tt.in, policy)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		var anomaly *TickAnomaly
		if !errors.As(err, &anomaly) {
			t.Errorf("%s: err is not a *TickAnomaly", tt.name)
		}
		if got.Phase != state.Phase || got.CurrentSpeed != state.CurrentSpeed || got.TargetSpeed != state.TargetSpeed {
			t.Errorf("%s: state changed to %+v", tt.name, got)
		}
	}
}

func TestSpeedReductionLabel(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		d    *float64
		want string
	}{
		{nil, "None"},
		{f(0.4), "Full Stop (Aggressive)"},
		{f(1), "Full Stop (Aggressive)"},
		{f(1.8), "Significant Reduction (Moderate)"},
		{f(4.9), "Slight Reduction"},
		{f(7), "None"},
	}

	for _, tt := range tests {
		if got := SpeedReductionLabel(tt.d); got != tt.want {
			t.Errorf("SpeedReductionLabel(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
