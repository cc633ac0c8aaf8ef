package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/metrics"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrTransitionLogFull = errors.New("transition log buffer full")

var transitionColumns = []string{
	"event_id",
	"vehicle_id",
	"from_phase",
	"to_phase",
	"tier",
	"target_speed",
	"current_speed",
	"nearest_distance_km",
	"alert_id",
	"at",
}

// Satisfied by *pgxpool.Pool.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// TransitionLog buffers phase changes and bulk-writes them to Postgres with
// COPY. Publishing never blocks a control loop: when the buffer is full the
// event is dropped and counted.
type TransitionLog struct {
	pool       copier
	ch         chan domain.TransitionEvent
	batchSize  int
	flushEvery time.Duration
	retryDelay time.Duration
}

func NewTransitionLog(pool copier, buffer, batchSize int, flushEvery time.Duration) *TransitionLog {
	if batchSize <= 0 {
		batchSize = 100
	}
	if buffer < batchSize {
		buffer = batchSize
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	return &TransitionLog{
		pool:       pool,
		ch:         make(chan domain.TransitionEvent, buffer),
		batchSize:  batchSize,
		flushEvery: flushEvery,
		retryDelay: 500 * time.Millisecond,
	}
}

func (l *TransitionLog) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	select {
	case l.ch <- e:
		return nil
	default:
		metrics.TransitionDrops.Add(1)
		return fmt.Errorf("transition log: event %s: %w", e.EventID, ErrTransitionLogFull)
	}
}

// Run drains the buffer until ctx is cancelled, flushing on size or interval.
// Pending events are flushed on the way out.
func (l *TransitionLog) Run(ctx context.Context) {
	batch := make([]domain.TransitionEvent, 0, l.batchSize)
	ticker := time.NewTicker(l.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= l.batchSize {
				l.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				l.flush(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

func (l *TransitionLog) flush(ctx context.Context, batch []domain.TransitionEvent) {
	err := l.insert(ctx, batch)
	if err != nil {
		log.Printf("op=transition_log.flush batch=%d err=%v retrying", len(batch), err)
		time.Sleep(l.retryDelay)
		err = l.insert(ctx, batch)
		if err != nil {
			log.Printf("op=transition_log.flush batch=%d err=%v dropped", len(batch), err)
			metrics.TransitionDrops.Add(int64(len(batch)))
			return
		}
	}
	metrics.TransitionsLogged.Add(int64(len(batch)))
}

func (l *TransitionLog) insert(ctx context.Context, batch []domain.TransitionEvent) error {
	rows := make([][]any, len(batch))
	for i, e := range batch {
		rows[i] = []any{
			e.EventID,
			e.VehicleID,
			string(e.From),
			string(e.To),
			string(e.Tier),
			e.TargetSpeed,
			e.CurrentSpeed,
			e.NearestDistanceKm,
			e.AlertID,
			e.At,
		}
	}

	_, err := l.pool.CopyFrom(ctx, pgx.Identifier{"speed_transitions"}, transitionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %d transitions: %w", len(batch), err)
	}
	return nil
}
