package services

import (
	"context"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
	"time"

	"golang.org/x/sync/singleflight"
)

// CoalescingAlertSource collapses identical concurrent alert queries into a
// single upstream call. Every vehicle loop asks for the same recent-active
// window, so ticks that line up share one database round trip.
//
// Queries are keyed by status, limit and Since truncated to bucket. The shared
// upstream call is detached from the callers' cancellation and bounded by
// timeout; each caller still stops waiting when its own ctx is done.
type CoalescingAlertSource struct {
	next    ports.AlertSource
	bucket  time.Duration
	timeout time.Duration
	group   singleflight.Group
}

func NewCoalescingAlertSource(next ports.AlertSource, bucket, timeout time.Duration) *CoalescingAlertSource {
	if bucket <= 0 {
		bucket = time.Second
	}
	if timeout <= 0 {
		timeout = DefaultMonitorConfig().FetchTimeout
	}
	return &CoalescingAlertSource{next: next, bucket: bucket, timeout: timeout}
}

func (s *CoalescingAlertSource) ListRecentActive(ctx context.Context, query domain.AlertQuery) ([]domain.HazardAlert, error) {
	since := query.Since.Truncate(s.bucket)
	key := fmt.Sprintf("%s|%d|%d", query.Status, query.Limit, since.UnixNano())

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		q := query
		q.Since = since
		return s.next.ListRecentActive(fetchCtx, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]domain.HazardAlert)
		out := make([]domain.HazardAlert, len(shared))
		copy(out, shared)
		return out, nil
	}
}
