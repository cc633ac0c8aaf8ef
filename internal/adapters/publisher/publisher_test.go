package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/metrics"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func sampleEvent(id string) domain.TransitionEvent {
	d := 0.8
	return domain.TransitionEvent{
		EventID:           id,
		VehicleID:         "12951",
		From:              domain.PhaseMonitoring,
		To:                domain.PhaseSlowingDown,
		Tier:              domain.TierA,
		TargetSpeed:       20,
		CurrentSpeed:      105,
		NearestDistanceKm: &d,
		AlertID:           "ALT-1001",
		At:                at,
	}
}

func TestEncodeTransition(t *testing.T) {
	body, err := encodeTransition(sampleEvent("ev-1"))
	require.NoError(t, err)

	var msg transitionMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "slowing_down", msg.To)
	assert.Equal(t, "A", msg.Tier)
	assert.Equal(t, "Full Stop (Aggressive)", msg.SpeedReduction)
	assert.Equal(t, at.UnixMilli(), msg.Timestamp)
	require.NotNil(t, msg.NearestDistanceKm)
	assert.Equal(t, 0.8, *msg.NearestDistanceKm)
}

func TestRedisPublisher(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, TransitionsChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(client)
	require.NoError(t, p.PublishTransition(ctx, sampleEvent("ev-1")))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"event_id":"ev-1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on transitions channel")
	}

	assert.Equal(t, "slowing_down", s.HGet(PhaseKey("12951"), "phase"))
	assert.Equal(t, "ALT-1001", s.HGet(PhaseKey("12951"), "alert_id"))

	for i := 0; i < historyLength+5; i++ {
		require.NoError(t, p.PublishTransition(ctx, sampleEvent("ev-x")))
	}
	n, err := client.LLen(ctx, HistoryKey("12951")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(historyLength), n)
}

func TestRedisPublisherUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s.Close()

	err := NewRedisPublisher(client).PublishTransition(context.Background(), sampleEvent("ev-1"))
	assert.Error(t, err)
}

type fakeChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	exchange  string
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.exchange = exchange
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestRabbitMQPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{ch: ch}

	require.NoError(t, p.PublishTransition(context.Background(), sampleEvent("ev-7")))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, exchangeName, ch.exchange)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "ev-7", msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Contains(t, string(msg.Body), `"vehicle_id":"12951"`)
}

func TestRabbitMQPublisherError(t *testing.T) {
	boom := errors.New("channel closed")
	p := &RabbitMQPublisher{ch: &fakeChannel{err: boom}}

	err := p.PublishTransition(context.Background(), sampleEvent("ev-7"))
	assert.ErrorIs(t, err, boom)
}

type fakeCopier struct {
	mu    sync.Mutex
	table pgx.Identifier
	cols  []string
	rows  [][]any
	fails int
}

func (f *fakeCopier) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return 0, errors.New("connection reset")
	}
	f.table, f.cols = table, cols
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		f.rows = append(f.rows, values)
		n++
	}
	return n, nil
}

func (f *fakeCopier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestTransitionLogFlushesOnBatchSize(t *testing.T) {
	pool := &fakeCopier{}
	l := NewTransitionLog(pool, 10, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { l.Run(ctx); close(done) }()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.PublishTransition(ctx, sampleEvent(id)))
	}

	require.Eventually(t, func() bool { return pool.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, pgx.Identifier{"speed_transitions"}, pool.table)
	assert.Equal(t, transitionColumns, pool.cols)
	assert.Equal(t, "a", pool.rows[0][0])
	assert.Equal(t, "slowing_down", pool.rows[0][3])
}

func TestTransitionLogFlushesPendingOnShutdown(t *testing.T) {
	pool := &fakeCopier{}
	l := NewTransitionLog(pool, 10, 5, time.Hour)

	require.NoError(t, l.PublishTransition(context.Background(), sampleEvent("a")))
	require.NoError(t, l.PublishTransition(context.Background(), sampleEvent("b")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)

	assert.Equal(t, 2, pool.count())
}

func TestTransitionLogRetriesOnce(t *testing.T) {
	pool := &fakeCopier{fails: 1}
	l := NewTransitionLog(pool, 10, 1, time.Hour)
	l.retryDelay = time.Millisecond

	before := metrics.TransitionsLogged.Load()
	l.flush(context.Background(), []domain.TransitionEvent{sampleEvent("a")})

	assert.Equal(t, 1, pool.count())
	assert.Equal(t, before+1, metrics.TransitionsLogged.Load())
}

func TestTransitionLogDropsWhenFull(t *testing.T) {
	l := NewTransitionLog(&fakeCopier{}, 1, 1, time.Hour)

	require.NoError(t, l.PublishTransition(context.Background(), sampleEvent("a")))
	before := metrics.TransitionDrops.Load()

	err := l.PublishTransition(context.Background(), sampleEvent("b"))
	assert.ErrorIs(t, err, ErrTransitionLogFull)
	assert.Equal(t, before+1, metrics.TransitionDrops.Load())
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(1)
	fast, unsubFast := b.Subscribe()
	slow, unsubSlow := b.Subscribe()
	defer unsubSlow()
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.PublishTransition(context.Background(), sampleEvent("ev-1")))
	assert.Contains(t, string(<-fast), `"event_id":"ev-1"`)

	// slow still holds ev-1; ev-2 is dropped for it but reaches fast.
	before := metrics.TransitionDrops.Load()
	require.NoError(t, b.PublishTransition(context.Background(), sampleEvent("ev-2")))
	assert.Contains(t, string(<-fast), `"event_id":"ev-2"`)
	assert.Equal(t, before+1, metrics.TransitionDrops.Load())
	assert.Contains(t, string(<-slow), `"event_id":"ev-1"`)

	unsubFast()
	unsubFast()
	_, open := <-fast
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())
}
