package services

import (
	"context"
	"rail-hazard-monitor/internal/domain"
	"sync"
	"time"
)

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

type alertSourceFunc func(ctx context.Context, q domain.AlertQuery) ([]domain.HazardAlert, error)

func (f alertSourceFunc) ListRecentActive(ctx context.Context, q domain.AlertQuery) ([]domain.HazardAlert, error) {
	return f(ctx, q)
}

func staticAlerts(alerts ...domain.HazardAlert) alertSourceFunc {
	return func(ctx context.Context, q domain.AlertQuery) ([]domain.HazardAlert, error) {
		return alerts, nil
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.TransitionEvent
	err    error
}

func (s *recordingSink) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Events() []domain.TransitionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TransitionEvent(nil), s.events...)
}

type stationMap map[string]domain.GeoPoint

func (m stationMap) Locate(ctx context.Context, code string) (domain.GeoPoint, error) {
	p, ok := m[code]
	if !ok {
		return domain.GeoPoint{}, domain.ErrStationNotFound
	}
	return p, nil
}

func pt(lon, lat float64) *domain.GeoPoint { return &domain.GeoPoint{Lon: lon, Lat: lat} }

func alertAt(id string, sev domain.AlertSeverity, typ domain.AlertType, origin *domain.GeoPoint) domain.HazardAlert {
	return domain.HazardAlert{
		ID:        id,
		CameraID:  "cam-" + id,
		Severity:  sev,
		Type:      typ,
		Status:    domain.StatusActive,
		Origin:    origin,
		CreatedAt: t0,
	}
}
