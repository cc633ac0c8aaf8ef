package api

import (
	"net/http"
	"rail-hazard-monitor/internal/api/handlers"
	"rail-hazard-monitor/internal/platform/metrics"
)

// Handlers groups the endpoint handlers. Stream is optional.
type Handlers struct {
	Health   *handlers.HealthHandler
	Alerts   *handlers.AlertHandler
	Monitors *handlers.MonitorHandler
	Export   *handlers.ExportHandler
	Stream   *handlers.StreamHandler
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health.Health)
	mux.HandleFunc("/metrics", metrics.HandleMetrics)
	mux.HandleFunc("/alerts", h.Alerts.List)
	mux.HandleFunc("/monitors", h.Monitors.List)
	mux.HandleFunc("/monitors/{id}", h.Monitors.Get)
	mux.HandleFunc("/monitors/{id}/transitions", h.Monitors.Transitions)
	mux.HandleFunc("/monitors/{id}/stop", h.Monitors.Stop)
	mux.HandleFunc("/monitors/{id}/start", h.Monitors.StartMonitor)
	mux.HandleFunc("/export.kml", h.Export.KML)
	if h.Stream != nil {
		mux.HandleFunc("/ws/transitions", h.Stream.Transitions)
	}

	return loggingMiddleware(mux)
}
