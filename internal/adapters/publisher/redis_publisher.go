package publisher

import (
	"context"
	"fmt"
	"rail-hazard-monitor/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	TransitionsChannel = "rail:speed:transitions"
	historyLength      = 100
)

func PhaseKey(vehicleID string) string   { return fmt.Sprintf("vehicle:%s:phase", vehicleID) }
func HistoryKey(vehicleID string) string { return fmt.Sprintf("vehicle:%s:transitions", vehicleID) }

// RedisPublisher announces phase changes on a shared channel, keeps the
// current phase per vehicle and a capped per-vehicle history list.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishTransition(ctx context.Context, e domain.TransitionEvent) error {
	payload, err := encodeTransition(e)
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, PhaseKey(e.VehicleID), map[string]interface{}{
		"phase":         string(e.To),
		"tier":          string(e.Tier),
		"target_speed":  e.TargetSpeed,
		"current_speed": e.CurrentSpeed,
		"alert_id":      e.AlertID,
		"since":         e.At.Unix(),
	})
	pipe.LPush(ctx, HistoryKey(e.VehicleID), payload)
	pipe.LTrim(ctx, HistoryKey(e.VehicleID), 0, historyLength-1)
	pipe.Publish(ctx, TransitionsChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: vehicle %s: pipeline: %w", e.VehicleID, err)
	}
	return nil
}
