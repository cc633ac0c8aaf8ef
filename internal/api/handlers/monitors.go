package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"rail-hazard-monitor/internal/api/dto"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
	"rail-hazard-monitor/internal/services"
	"strconv"
	"time"
)

// Read and stop access to the running control loops.
type MonitorRegistry interface {
	Snapshots() []services.MonitorSnapshot
	Snapshot(vehicleID string) (services.MonitorSnapshot, bool)
	Stop(vehicleID string) error
}

// MonitorHandler exposes per-train monitor state and lifecycle.
type MonitorHandler struct {
	Monitors MonitorRegistry
	// Starts the monitor for a registered train.
	Start   func(ctx context.Context, vehicleID string) error
	History ports.TransitionHistory
}

func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snaps := h.Monitors.Snapshots()
	res := dto.ListMonitorsResponse{Monitors: make([]dto.MonitorResponse, 0, len(snaps))}
	for _, s := range snaps {
		res.Monitors = append(res.Monitors, toMonitorResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s, ok := h.Monitors.Snapshot(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "monitor not found")
		return
	}

	writeJSON(w, r, http.StatusOK, toMonitorResponse(s))
}

func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := r.PathValue("id")
	if err := h.Monitors.Stop(id); err != nil {
		if errors.Is(err, services.ErrMonitorNotFound) {
			writeError(w, r, http.StatusNotFound, "monitor not found")
			return
		}
		log.Printf("stop monitor failed: vehicle_id=%s err=%v", id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"vehicle_id": id, "status": "stopped"})
}

func (h *MonitorHandler) StartMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Start == nil {
		writeError(w, r, http.StatusNotImplemented, "starting monitors is not supported")
		return
	}

	id := r.PathValue("id")
	err := h.Start(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrMonitorExists):
		writeError(w, r, http.StatusConflict, "monitor already running")
		return
	case errors.Is(err, services.ErrTrainNotFound):
		writeError(w, r, http.StatusNotFound, "train not found")
		return
	case errors.Is(err, domain.ErrStationNotFound):
		writeError(w, r, http.StatusUnprocessableEntity, "start station not found")
		return
	default:
		log.Printf("start monitor failed: vehicle_id=%s err=%v", id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	s, _ := h.Monitors.Snapshot(id)
	writeJSON(w, r, http.StatusCreated, toMonitorResponse(s))
}

func (h *MonitorHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.History == nil {
		writeError(w, r, http.StatusNotImplemented, "transition history is not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, http.StatusBadRequest, errBadParam("limit (1-500)").Error())
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	events, err := h.History.ListTransitions(r.Context(), id, limit)
	if err != nil {
		log.Printf("list transitions failed: vehicle_id=%s err=%v", id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListTransitionsResponse{VehicleID: id, Transitions: make([]dto.TransitionResponse, 0, len(events))}
	for _, e := range events {
		res.Transitions = append(res.Transitions, dto.TransitionResponse{
			EventID:           e.EventID,
			From:              string(e.From),
			To:                string(e.To),
			Tier:              string(e.Tier),
			TargetSpeed:       e.TargetSpeed,
			CurrentSpeed:      e.CurrentSpeed,
			NearestDistanceKm: e.NearestDistanceKm,
			AlertID:           e.AlertID,
			At:                e.At,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}

func toMonitorResponse(s services.MonitorSnapshot) dto.MonitorResponse {
	return dto.MonitorResponse{
		VehicleID:         s.VehicleID,
		Phase:             string(s.State.Phase),
		Tier:              string(s.State.Tier),
		NominalSpeed:      s.NominalSpeed,
		CurrentSpeed:      s.State.CurrentSpeed,
		TargetSpeed:       s.State.TargetSpeed,
		NearestDistanceKm: s.State.NearestDistanceKm,
		SpeedReduction:    domain.SpeedReductionLabel(s.State.NearestDistanceKm),
		NearbyAlerts:      s.NearbyAlerts,
		DecisiveAlertID:   s.DecisiveAlertID,
		Position:          toLocation(s.Position),
		Stale:             s.Stale,
		LastError:         s.LastError,
		LastTransitionAt:  s.State.LastTransitionAt,
		LastAttemptAt:     optionalTime(s.LastAttemptAt),
		LastSuccessAt:     optionalTime(s.LastSuccessAt),
		Ticks:             s.Ticks,
		SkippedTicks:      s.SkippedTicks,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
