package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoTelemetry    = errors.New("no telemetry for vehicle")
	ErrStaleTelemetry = errors.New("telemetry too old")
)

const commandTTL = 30 * time.Second

// RedisProvider reads the live state hash maintained by the ingestion
// pipeline (vehicle:{id}:state) and publishes speed commands back.
// Commands are advisory: the ingestion side decides what to do with them.
type RedisProvider struct {
	client    *redis.Client
	vehicleID string
	maxAge    time.Duration
	now       func() time.Time
}

// NewRedisProvider reads state for one vehicle. maxAge <= 0 disables the freshness check.
func NewRedisProvider(client *redis.Client, vehicleID string, maxAge time.Duration) *RedisProvider {
	return &RedisProvider{client: client, vehicleID: vehicleID, maxAge: maxAge, now: time.Now}
}

func StateKey(vehicleID string) string   { return fmt.Sprintf("vehicle:%s:state", vehicleID) }
func CommandKey(vehicleID string) string { return fmt.Sprintf("vehicle:%s:command", vehicleID) }
func CommandChannel(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:commands", vehicleID)
}

func (p *RedisProvider) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	vals, err := p.readState(ctx, "lat", "lng")
	if err != nil {
		return domain.GeoPoint{}, err
	}
	return domain.GeoPoint{Lat: vals[0], Lon: vals[1]}, nil
}

func (p *RedisProvider) CurrentSpeed(ctx context.Context) (float64, error) {
	vals, err := p.readState(ctx, "speed_kmh")
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// ApplySpeedCommand stores the latest command and announces it on the vehicle's channel.
func (p *RedisProvider) ApplySpeedCommand(ctx context.Context, cmd domain.SpeedCommand) (err error) {
	defer obs.Time(ctx, "redis.apply_command")(&err)

	data := map[string]interface{}{
		"vehicle_id":  p.vehicleID,
		"speed_kmh":   cmd.Speed,
		"delta_kmh":   cmd.Delta,
		"restriction": cmd.Restriction,
		"tier":        string(cmd.Tier),
		"phase":       string(cmd.Phase),
		"issued_at":   cmd.IssuedAt.Unix(),
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("apply speed command: marshal: %w", err)
	}

	key := CommandKey(p.vehicleID)
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, commandTTL)
	pipe.Publish(ctx, CommandChannel(p.vehicleID), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply speed command: vehicle %s: redis pipeline: %w", p.vehicleID, err)
	}
	return nil
}

func (p *RedisProvider) readState(ctx context.Context, fields ...string) ([]float64, error) {
	key := StateKey(p.vehicleID)
	raw, err := p.client.HMGet(ctx, key, append(fields, "timestamp")...).Result()
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %s: %w", key, err)
	}

	out := make([]float64, len(fields))
	for i, f := range fields {
		s, ok := raw[i].(string)
		if !ok {
			return nil, fmt.Errorf("read telemetry: %s: field %s: %w", key, f, ErrNoTelemetry)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("read telemetry: %s: parse %s=%q: %w", key, f, s, err)
		}
		out[i] = v
	}

	if p.maxAge > 0 {
		if ts, ok := raw[len(fields)].(string); ok {
			sec, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("read telemetry: %s: parse timestamp=%q: %w", key, ts, err)
			}
			if age := p.now().Sub(time.Unix(sec, 0)); age > p.maxAge {
				return nil, fmt.Errorf("read telemetry: %s: age %s: %w", key, age.Round(time.Second), ErrStaleTelemetry)
			}
		}
	}

	return out, nil
}
