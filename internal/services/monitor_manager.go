package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"rail-hazard-monitor/internal/platform/metrics"
	"rail-hazard-monitor/internal/ports"
	"sort"
	"sync"
)

var (
	ErrMonitorExists   = errors.New("monitor already running")
	ErrMonitorNotFound = errors.New("monitor not found")
	ErrTrainNotFound   = errors.New("train not found")
)

type runningMonitor struct {
	monitor *VehicleMonitor
	cancel  context.CancelFunc
	done    chan struct{}
}

// MonitorManager owns the per-vehicle control loops. Loops share nothing but
// the alert source; stopping one cancels only its own context and discards
// its state.
type MonitorManager struct {
	alerts ports.AlertSource
	cfg    MonitorConfig
	opts   []MonitorOption

	mu       sync.Mutex
	monitors map[string]*runningMonitor
}

func NewMonitorManager(alerts ports.AlertSource, cfg MonitorConfig, opts ...MonitorOption) *MonitorManager {
	return &MonitorManager{
		alerts:   alerts,
		cfg:      cfg,
		opts:     opts,
		monitors: make(map[string]*runningMonitor),
	}
}

// Start launches a control loop for the vehicle. The loop outlives ctx's
// deadline but not an explicit Stop or StopAll.
func (mm *MonitorManager) Start(ctx context.Context, vehicleID string, nominalSpeed float64, telemetry ports.TelemetryProvider) error {
	if vehicleID == "" {
		return errors.New("start monitor: vehicle id must be non-empty")
	}
	if nominalSpeed <= 0 {
		return fmt.Errorf("start monitor: vehicle %s: nominal speed must be positive, got %v", vehicleID, nominalSpeed)
	}
	if telemetry == nil {
		return fmt.Errorf("start monitor: vehicle %s: telemetry provider must be non-nil", vehicleID)
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	if _, ok := mm.monitors[vehicleID]; ok {
		return fmt.Errorf("start monitor: vehicle %s: %w", vehicleID, ErrMonitorExists)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rm := &runningMonitor{
		monitor: NewVehicleMonitor(vehicleID, nominalSpeed, mm.alerts, telemetry, mm.cfg, mm.opts...),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	mm.monitors[vehicleID] = rm
	metrics.MonitorsRunning.Add(1)

	go func() {
		defer close(rm.done)
		defer metrics.MonitorsRunning.Add(-1)
		rm.monitor.Run(runCtx)
	}()

	return nil
}

// Stop cancels the vehicle's loop, waits for it to exit and forgets its state.
func (mm *MonitorManager) Stop(vehicleID string) error {
	mm.mu.Lock()
	rm, ok := mm.monitors[vehicleID]
	if ok {
		delete(mm.monitors, vehicleID)
	}
	mm.mu.Unlock()

	if !ok {
		return fmt.Errorf("stop monitor: vehicle %s: %w", vehicleID, ErrMonitorNotFound)
	}

	rm.cancel()
	<-rm.done
	return nil
}

// StopAll stops every loop and waits for them to exit.
func (mm *MonitorManager) StopAll() {
	mm.mu.Lock()
	running := mm.monitors
	mm.monitors = make(map[string]*runningMonitor)
	mm.mu.Unlock()

	for _, rm := range running {
		rm.cancel()
	}
	for id, rm := range running {
		<-rm.done
		log.Printf("vehicle_id=%s op=monitor.stopped", id)
	}
}

func (mm *MonitorManager) Snapshot(vehicleID string) (MonitorSnapshot, bool) {
	mm.mu.Lock()
	rm, ok := mm.monitors[vehicleID]
	mm.mu.Unlock()

	if !ok {
		return MonitorSnapshot{}, false
	}
	return rm.monitor.Snapshot(), true
}

// Snapshots returns the state of every running loop ordered by vehicle id.
func (mm *MonitorManager) Snapshots() []MonitorSnapshot {
	mm.mu.Lock()
	out := make([]MonitorSnapshot, 0, len(mm.monitors))
	for _, rm := range mm.monitors {
		out = append(out, rm.monitor.Snapshot())
	}
	mm.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}
