package handlers

import (
	"log"
	"net/http"
	"rail-hazard-monitor/internal/api/dto"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
	"rail-hazard-monitor/internal/services"
	"strconv"
	"strings"
	"time"
)

const maxAlertLimit = 500

// AlertHandler exposes the ranked alert listing.
type AlertHandler struct {
	Repo ports.AlertRepository
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter, err := parseAlertFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.Repo.ListAlerts(r.Context(), filter)
	if err != nil {
		log.Printf("list alerts failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	ranked := services.RankAlerts(alerts)
	res := dto.ListAlertsResponse{Alerts: make([]dto.AlertResponse, 0, len(ranked))}
	for _, a := range ranked {
		res.Alerts = append(res.Alerts, dto.AlertResponse{
			AlertID:   a.ID,
			CameraID:  a.CameraID,
			Severity:  string(a.Severity),
			AlertType: string(a.Type),
			Status:    string(a.Status),
			Location:  toLocation(a.Origin),
			Notes:     a.Notes,
			CreatedAt: a.CreatedAt,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}

func parseAlertFilter(r *http.Request) (domain.AlertFilter, error) {
	q := r.URL.Query()
	filter := domain.AlertFilter{
		Status:   domain.AlertStatus(strings.TrimSpace(q.Get("status"))),
		Type:     domain.AlertType(strings.TrimSpace(q.Get("type"))),
		Severity: domain.AlertSeverity(strings.TrimSpace(q.Get("severity"))),
		CameraID: strings.TrimSpace(q.Get("camera_id")),
		Limit:    100,
	}

	if filter.Status != "" && filter.Status.Rank() > 3 {
		return filter, errBadParam("status")
	}
	if filter.Severity != "" && filter.Severity.Rank() > 3 {
		return filter, errBadParam("severity")
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errBadParam(p.name + " (RFC 3339 expected)")
		}
		*p.dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, errBadParam("to (before from)")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAlertLimit {
			return filter, errBadParam("limit (1-500)")
		}
		filter.Limit = n
	}

	return filter, nil
}

func toLocation(p *domain.GeoPoint) *dto.LocationResponse {
	if p == nil {
		return nil
	}
	return &dto.LocationResponse{Lon: p.Lon, Lat: p.Lat}
}
