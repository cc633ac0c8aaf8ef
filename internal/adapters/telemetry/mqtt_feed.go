package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/obs"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const locationTopic = "/fleet/vehicle/+/location"

func CommandTopic(vehicleID string) string { return fmt.Sprintf("/fleet/vehicle/%s/command", vehicleID) }

// Subset of mqtt.Client used by the feed.
type mqttClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type locationMessage struct {
	VehicleID string   `json:"vehicle_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	SpeedKmh  *float64 `json:"speed_kmh"`
	Timestamp int64    `json:"timestamp"`
}

type commandMessage struct {
	VehicleID   string  `json:"vehicle_id"`
	SpeedKmh    float64 `json:"speed_kmh"`
	DeltaKmh    float64 `json:"delta_kmh"`
	Restriction float64 `json:"restriction"`
	Tier        string  `json:"tier"`
	Phase       string  `json:"phase"`
	IssuedAt    int64   `json:"issued_at"`
}

type vehicleFix struct {
	position domain.GeoPoint
	speed    float64
	at       time.Time
}

// MQTTFeed keeps the latest reported fix for every vehicle publishing on
// /fleet/vehicle/{id}/location. One subscription serves all vehicles.
type MQTTFeed struct {
	client mqttClient
	maxAge time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	fixes map[string]vehicleFix
}

// NewMQTTFeed wraps a connected client. maxAge <= 0 disables the freshness check.
func NewMQTTFeed(client mqttClient, maxAge time.Duration) *MQTTFeed {
	return &MQTTFeed{
		client: client,
		maxAge: maxAge,
		now:    time.Now,
		fixes:  make(map[string]vehicleFix),
	}
}

func (f *MQTTFeed) Start() error {
	token := f.client.Subscribe(locationTopic, 1, f.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", locationTopic, err)
	}
	return nil
}

func (f *MQTTFeed) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("op=mqtt.location topic=%s err=invalid message: %v", msg.Topic(), err)
		return
	}

	if raw.VehicleID == "" {
		raw.VehicleID = vehicleFromTopic(msg.Topic())
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Printf("op=mqtt.location topic=%s err=%v", msg.Topic(), err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, seen := f.fixes[raw.VehicleID]
	at := time.Unix(raw.Timestamp, 0)
	if seen && at.Before(prev.at) {
		return
	}

	fix := vehicleFix{
		position: domain.GeoPoint{Lon: raw.Longitude, Lat: raw.Latitude},
		speed:    prev.speed,
		at:       at,
	}
	if raw.SpeedKmh != nil {
		fix.speed = *raw.SpeedKmh
	}
	f.fixes[raw.VehicleID] = fix
}

// Provider returns the telemetry view of one vehicle on this feed.
func (f *MQTTFeed) Provider(vehicleID string) *MQTTProvider {
	return &MQTTProvider{feed: f, vehicleID: vehicleID}
}

func (f *MQTTFeed) latest(vehicleID string) (vehicleFix, error) {
	f.mu.RLock()
	fix, ok := f.fixes[vehicleID]
	f.mu.RUnlock()

	if !ok {
		return vehicleFix{}, fmt.Errorf("read telemetry: mqtt vehicle %s: %w", vehicleID, ErrNoTelemetry)
	}
	if f.maxAge > 0 {
		if age := f.now().Sub(fix.at); age > f.maxAge {
			return vehicleFix{}, fmt.Errorf("read telemetry: mqtt vehicle %s: age %s: %w", vehicleID, age.Round(time.Second), ErrStaleTelemetry)
		}
	}
	return fix, nil
}

type MQTTProvider struct {
	feed      *MQTTFeed
	vehicleID string
}

func (p *MQTTProvider) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	fix, err := p.feed.latest(p.vehicleID)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	return fix.position, nil
}

func (p *MQTTProvider) CurrentSpeed(ctx context.Context) (float64, error) {
	fix, err := p.feed.latest(p.vehicleID)
	if err != nil {
		return 0, err
	}
	return fix.speed, nil
}

// ApplySpeedCommand publishes the command on /fleet/vehicle/{id}/command and
// waits for the broker acknowledgement until ctx expires.
func (p *MQTTProvider) ApplySpeedCommand(ctx context.Context, cmd domain.SpeedCommand) (err error) {
	defer obs.Time(ctx, "mqtt.apply_command")(&err)

	payload, err := json.Marshal(commandMessage{
		VehicleID:   p.vehicleID,
		SpeedKmh:    cmd.Speed,
		DeltaKmh:    cmd.Delta,
		Restriction: cmd.Restriction,
		Tier:        string(cmd.Tier),
		Phase:       string(cmd.Phase),
		IssuedAt:    cmd.IssuedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("apply speed command: marshal: %w", err)
	}

	token := p.feed.client.Publish(CommandTopic(p.vehicleID), 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("apply speed command: vehicle %s: mqtt publish: %w", p.vehicleID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("apply speed command: vehicle %s: mqtt publish: %w", p.vehicleID, ctx.Err())
	}
}

func vehicleFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) == 4 && parts[0] == "fleet" && parts[1] == "vehicle" {
		return parts[2]
	}
	return ""
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.VehicleID == "" {
		return fmt.Errorf("vehicle_id: required")
	}
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	if msg.SpeedKmh != nil && *msg.SpeedKmh < 0 {
		return fmt.Errorf("speed_kmh: must not be negative")
	}
	return nil
}
