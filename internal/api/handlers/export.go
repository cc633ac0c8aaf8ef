package handlers

import (
	"fmt"
	"log"
	"net/http"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
	"rail-hazard-monitor/internal/services"
	"time"

	"github.com/twpayne/go-kml"
)

// ExportHandler renders active hazards and monitored trains as KML for map viewers.
type ExportHandler struct {
	Alerts   ports.AlertSource
	Monitors MonitorRegistry
	Window   time.Duration
	Limit    int
	Now      func() time.Time
}

func (h *ExportHandler) KML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	alerts, err := h.Alerts.ListRecentActive(r.Context(), domain.AlertQuery{
		Status: domain.StatusActive,
		Since:  now().Add(-h.Window),
		Limit:  h.Limit,
	})
	if err != nil {
		log.Printf("export kml failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	doc := kml.KML(kml.Document(
		kml.Name("Rail hazard monitor"),
		hazardFolder(services.RankAlerts(alerts)),
		trainFolder(h.Monitors.Snapshots()),
	))

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="rail-hazards.kml"`)
	w.WriteHeader(http.StatusOK)
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func hazardFolder(alerts []domain.HazardAlert) kml.Element {
	children := []kml.Element{kml.Name("Active hazards")}
	for _, a := range alerts {
		if !a.HasUsableOrigin() {
			continue
		}
		children = append(children, kml.Placemark(
			kml.Name(fmt.Sprintf("%s (%s)", a.ID, a.Severity)),
			kml.Description(fmt.Sprintf("%s from camera %s at %s", a.Type, a.CameraID, a.CreatedAt.UTC().Format(time.RFC3339))),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: a.Origin.Lon, Lat: a.Origin.Lat})),
		))
	}
	return kml.Folder(children...)
}

func trainFolder(snaps []services.MonitorSnapshot) kml.Element {
	children := []kml.Element{kml.Name("Monitored trains")}
	for _, s := range snaps {
		if s.Position == nil {
			continue
		}
		children = append(children, kml.Placemark(
			kml.Name(s.VehicleID),
			kml.Description(fmt.Sprintf("%s at %.1f km/h, target %.1f km/h, %s",
				s.State.Phase, s.State.CurrentSpeed, s.State.TargetSpeed, domain.SpeedReductionLabel(s.State.NearestDistanceKm))),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: s.Position.Lon, Lat: s.Position.Lat})),
		))
	}
	return kml.Folder(children...)
}
