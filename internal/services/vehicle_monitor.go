package services

import (
	"context"
	"fmt"
	"log"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/metrics"
	"rail-hazard-monitor/internal/platform/obs"
	"rail-hazard-monitor/internal/ports"
	"sync"
	"sync/atomic"
	"time"
)

type MonitorConfig struct {
	TickInterval time.Duration
	// Bound on the blocking part of a tick (telemetry read, alert fetch, command delivery).
	FetchTimeout time.Duration
	AlertWindow  time.Duration
	AlertLimit   int
	Policy       domain.SpeedPolicy
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval: time.Second,
		FetchTimeout: 800 * time.Millisecond,
		AlertWindow:  5 * time.Minute,
		AlertLimit:   50,
		Policy:       domain.DefaultSpeedPolicy(),
	}
}

type TickOutcome string

const (
	TickApplied TickOutcome = "applied"
	TickSkipped TickOutcome = "skipped"
	TickStale   TickOutcome = "stale"
	TickAnomaly TickOutcome = "anomaly"
)

// Result of one control-loop iteration.
type TickReport struct {
	Outcome        TickOutcome
	Classification domain.Classification
	Command        *domain.SpeedCommand
	Transition     *domain.TransitionEvent
	Err            error
}

// Read-only view of a monitor, safe to hand to other goroutines.
// When Stale is set the state is the last one computed successfully.
type MonitorSnapshot struct {
	VehicleID       string
	NominalSpeed    float64
	State           domain.SpeedControlState
	Position        *domain.GeoPoint
	NearbyAlerts    int
	DecisiveAlertID string
	Stale           bool
	LastError       string
	LastAttemptAt   time.Time
	LastSuccessAt   time.Time
	Ticks           int64
	SkippedTicks    int64
}

// VehicleMonitor runs the speed-control loop for one vehicle.
//
// Each tick reads telemetry and the recent active alerts (the only blocking
// steps), then filters, classifies and advances the state machine. Ticks
// never overlap: a tick that comes due while the previous one is in flight
// is skipped. The control state is only touched by the goroutine holding the
// in-flight flag; readers use Snapshot.
type VehicleMonitor struct {
	vehicleID    string
	nominalSpeed float64
	alerts       ports.AlertSource
	telemetry    ports.TelemetryProvider
	sinks        []ports.TransitionSink
	cfg          MonitorConfig
	now          func() time.Time

	inFlight atomic.Bool
	state    domain.SpeedControlState
	snapshot atomic.Pointer[MonitorSnapshot]
	ticks    atomic.Int64
	skipped  atomic.Int64
}

type MonitorOption func(*VehicleMonitor)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *VehicleMonitor) { m.now = now }
}

// WithTransitionSinks registers consumers for phase changes.
func WithTransitionSinks(sinks ...ports.TransitionSink) MonitorOption {
	return func(m *VehicleMonitor) { m.sinks = append(m.sinks, sinks...) }
}

func NewVehicleMonitor(
	vehicleID string,
	nominalSpeed float64,
	alerts ports.AlertSource,
	telemetry ports.TelemetryProvider,
	cfg MonitorConfig,
	opts ...MonitorOption,
) *VehicleMonitor {
	m := &VehicleMonitor{
		vehicleID:    vehicleID,
		nominalSpeed: nominalSpeed,
		alerts:       alerts,
		telemetry:    telemetry,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.state = domain.NewSpeedControlState(nominalSpeed, m.now())
	m.snapshot.Store(&MonitorSnapshot{
		VehicleID:    vehicleID,
		NominalSpeed: nominalSpeed,
		State:        m.state,
	})
	return m
}

func (m *VehicleMonitor) VehicleID() string { return m.vehicleID }

func (m *VehicleMonitor) Snapshot() MonitorSnapshot {
	s := *m.snapshot.Load()
	s.Ticks = m.ticks.Load()
	s.SkippedTicks = m.skipped.Load()
	return s
}

// Run drives Step on a ticker until ctx is cancelled, then waits for the
// in-flight tick to finish.
func (m *VehicleMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	log.Printf("vehicle_id=%s op=monitor.start tick=%s nominal=%.1f", m.vehicleID, m.cfg.TickInterval, m.nominalSpeed)
	for {
		select {
		case <-ctx.Done():
			log.Printf("vehicle_id=%s op=monitor.stop reason=%v", m.vehicleID, ctx.Err())
			return
		case <-ticker.C:
			if m.inFlight.Load() {
				m.recordSkip()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Step(ctx)
			}()
		}
	}
}

// Step performs a single control-loop iteration.
func (m *VehicleMonitor) Step(ctx context.Context) (report TickReport) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.recordSkip()
		return TickReport{Outcome: TickSkipped}
	}
	defer m.inFlight.Store(false)
	defer m.recoverTick(&report)

	m.ticks.Add(1)
	metrics.TicksTotal.Add(1)

	now := m.now()
	ctx = obs.WithVehicleID(ctx, m.vehicleID)
	ioCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	vt, err := m.readTelemetry(ioCtx, now)
	if err != nil {
		return m.stale(now, fmt.Errorf("monitor tick: read telemetry: %w", err))
	}

	alerts, err := m.fetchAlerts(ioCtx, now)
	if err != nil {
		return m.stale(now, fmt.Errorf("monitor tick: fetch alerts: %w", err))
	}

	position, speed := vt.Position, vt.CurrentSpeed
	if !position.Valid() {
		return m.anomaly(now, &position, &domain.TickAnomaly{Field: "position", Err: domain.ErrInvalidPosition})
	}

	nearby := FilterNearby(alerts, position, m.cfg.Policy.RadiusKm)
	c := Classify(nearby, m.cfg.Policy, m.nominalSpeed)

	prev := m.state
	next, cmd, err := domain.Tick(prev, domain.TickInput{
		Classification: c,
		CurrentSpeed:   speed,
		NominalSpeed:   m.nominalSpeed,
		At:             now,
	}, m.cfg.Policy)
	if err != nil {
		return m.anomaly(now, &position, err)
	}

	if err := m.telemetry.ApplySpeedCommand(ioCtx, cmd); err != nil {
		metrics.CommandFailures.Add(1)
		return m.stale(now, fmt.Errorf("monitor tick: apply speed command: %w", err))
	}
	metrics.CommandsApplied.Add(1)

	m.state = next
	report = TickReport{Outcome: TickApplied, Classification: c, Command: &cmd}

	if next.Phase != prev.Phase {
		event := domain.NewTransitionEvent(m.vehicleID, prev, next, c.AlertID)
		report.Transition = &event
		metrics.PhaseTransitions.Add(1)
		log.Printf(
			"vehicle_id=%s op=monitor.transition from=%s to=%s tier=%s speed=%.1f target=%.1f alert_id=%s",
			m.vehicleID, prev.Phase, next.Phase, next.Tier, next.CurrentSpeed, next.TargetSpeed, c.AlertID,
		)
		m.publishTransition(ctx, event)
	}

	m.snapshot.Store(&MonitorSnapshot{
		VehicleID:       m.vehicleID,
		NominalSpeed:    m.nominalSpeed,
		State:           next,
		Position:        &position,
		NearbyAlerts:    c.NearbyCount,
		DecisiveAlertID: c.AlertID,
		LastAttemptAt:   now,
		LastSuccessAt:   now,
	})

	return report
}

func (m *VehicleMonitor) readTelemetry(ctx context.Context, now time.Time) (domain.VehicleTelemetry, error) {
	position, err := m.telemetry.CurrentPosition(ctx)
	if err != nil {
		return domain.VehicleTelemetry{}, fmt.Errorf("position: %w", err)
	}

	speed, err := m.telemetry.CurrentSpeed(ctx)
	if err != nil {
		return domain.VehicleTelemetry{}, fmt.Errorf("speed: %w", err)
	}

	return domain.VehicleTelemetry{
		VehicleID:    m.vehicleID,
		Position:     position,
		CurrentSpeed: speed,
		NominalSpeed: m.nominalSpeed,
		LastUpdated:  now,
	}, nil
}

func (m *VehicleMonitor) fetchAlerts(ctx context.Context, now time.Time) (_ []domain.HazardAlert, err error) {
	defer obs.Time(ctx, "monitor.alerts")(&err)

	return m.alerts.ListRecentActive(ctx, domain.AlertQuery{
		Status: domain.StatusActive,
		Since:  now.Add(-m.cfg.AlertWindow),
		Limit:  m.cfg.AlertLimit,
	})
}

// stale keeps the last computed state and flags the snapshot.
func (m *VehicleMonitor) stale(now time.Time, err error) TickReport {
	metrics.StaleTicks.Add(1)
	log.Printf("vehicle_id=%s op=monitor.tick outcome=stale phase=%s speed=%.1f err=%v", m.vehicleID, m.state.Phase, m.state.CurrentSpeed, err)

	s := *m.snapshot.Load()
	s.Stale = true
	s.LastError = err.Error()
	s.LastAttemptAt = now
	m.snapshot.Store(&s)

	return TickReport{Outcome: TickStale, Err: err}
}

func (m *VehicleMonitor) anomaly(now time.Time, position *domain.GeoPoint, err error) TickReport {
	metrics.TickAnomalies.Add(1)
	log.Printf("vehicle_id=%s op=monitor.tick outcome=anomaly phase=%s err=%v", m.vehicleID, m.state.Phase, err)

	s := *m.snapshot.Load()
	s.LastError = err.Error()
	s.LastAttemptAt = now
	if position != nil && position.Valid() {
		p := *position
		s.Position = &p
	}
	m.snapshot.Store(&s)

	return TickReport{Outcome: TickAnomaly, Err: err}
}

func (m *VehicleMonitor) publishTransition(ctx context.Context, event domain.TransitionEvent) {
	if len(m.sinks) == 0 {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.FetchTimeout)
	defer cancel()

	for _, sink := range m.sinks {
		if err := sink.PublishTransition(pubCtx, event); err != nil {
			metrics.PublishFailures.Add(1)
			log.Printf("vehicle_id=%s op=monitor.publish event_id=%s err=%v", m.vehicleID, event.EventID, err)
		}
	}
}

func (m *VehicleMonitor) recordSkip() {
	m.skipped.Add(1)
	metrics.TicksSkipped.Add(1)
	log.Printf("vehicle_id=%s op=monitor.tick outcome=skipped reason=previous tick in flight", m.vehicleID)
}

// recoverTick keeps a panicking tick from taking down the process.
func (m *VehicleMonitor) recoverTick(report *TickReport) {
	if r := recover(); r != nil {
		metrics.MonitorPanics.Add(1)
		*report = m.stale(m.now(), fmt.Errorf("monitor tick: panic: %v", r))
	}
}
