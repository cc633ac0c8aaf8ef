package handlers

import (
	"context"
	"net/http"
	"rail-hazard-monitor/internal/adapters/cache"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type cacheStatter interface {
	Stats() cache.Stats
}

// HealthHandler reports liveness plus storage reachability, loop staleness
// and station cache freshness.
type HealthHandler struct {
	DB           pinger
	Monitors     MonitorRegistry
	StationCache cacheStatter
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	res := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			res["status"] = "unavailable"
			res["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if h.Monitors != nil {
		snaps := h.Monitors.Snapshots()
		stale := 0
		for _, s := range snaps {
			if s.Stale {
				stale++
			}
		}
		res["monitors"] = len(snaps)
		res["stale_monitors"] = stale
	}

	if h.StationCache != nil {
		cs := h.StationCache.Stats()
		res["station_cache"] = map[string]int{
			"entries": cs.TotalEntries,
			"fresh":   cs.FreshEntries,
			"stale":   cs.StaleEntries,
		}
	}

	writeJSON(w, r, status, res)
}
