package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	TicksTotal        atomic.Int64
	TicksSkipped      atomic.Int64
	StaleTicks        atomic.Int64
	TickAnomalies     atomic.Int64
	CommandsApplied   atomic.Int64
	CommandFailures   atomic.Int64
	PhaseTransitions  atomic.Int64
	PublishFailures   atomic.Int64
	TransitionsLogged atomic.Int64
	TransitionDrops   atomic.Int64
	MonitorsRunning   atomic.Int64
	MonitorPanics     atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "speedctl_ticks_total %d\n", TicksTotal.Load())
	fmt.Fprintf(w, "speedctl_ticks_skipped_total %d\n", TicksSkipped.Load())
	fmt.Fprintf(w, "speedctl_ticks_stale_total %d\n", StaleTicks.Load())
	fmt.Fprintf(w, "speedctl_tick_anomalies_total %d\n", TickAnomalies.Load())
	fmt.Fprintf(w, "speedctl_commands_applied_total %d\n", CommandsApplied.Load())
	fmt.Fprintf(w, "speedctl_command_failures_total %d\n", CommandFailures.Load())
	fmt.Fprintf(w, "speedctl_phase_transitions_total %d\n", PhaseTransitions.Load())
	fmt.Fprintf(w, "speedctl_publish_failures_total %d\n", PublishFailures.Load())
	fmt.Fprintf(w, "speedctl_transitions_logged_total %d\n", TransitionsLogged.Load())
	fmt.Fprintf(w, "speedctl_transition_log_drops_total %d\n", TransitionDrops.Load())
	fmt.Fprintf(w, "speedctl_monitors_running %d\n", MonitorsRunning.Load())
	fmt.Fprintf(w, "speedctl_monitor_panics_total %d\n", MonitorPanics.Load())
}
