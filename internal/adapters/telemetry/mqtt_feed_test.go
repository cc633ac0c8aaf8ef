package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"rail-hazard-monitor/internal/domain"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu         sync.Mutex
	subscribed string
	handler    mqtt.MessageHandler
	published  []published
	token      *fakeToken
}

func (c *fakeMQTT) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.subscribed, c.handler = topic, cb
	return doneToken(nil)
}

func (c *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return doneToken(nil)
}

func deliver(c *fakeMQTT, topic, payload string) {
	c.handler(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

func TestMQTTFeedTracksLatestFix(t *testing.T) {
	client := &fakeMQTT{}
	feed := NewMQTTFeed(client, 0)
	require.NoError(t, feed.Start())
	assert.Equal(t, "/fleet/vehicle/+/location", client.subscribed)

	deliver(client, "/fleet/vehicle/12951/location", `{"vehicle_id":"12951","latitude":28.64,"longitude":77.22,"speed_kmh":96,"timestamp":1775813400}`)
	deliver(client, "/fleet/vehicle/12951/location", `{"latitude":28.65,"longitude":77.23,"timestamp":1775813401}`)
	// Out of order fixes are ignored.
	deliver(client, "/fleet/vehicle/12951/location", `{"vehicle_id":"12951","latitude":1,"longitude":1,"speed_kmh":10,"timestamp":1775813000}`)

	p := feed.Provider("12951")
	pos, err := p.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lon: 77.23, Lat: 28.65}, pos)

	speed, err := p.CurrentSpeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 96.0, speed, "speed carries over when a fix omits it")
}

func TestMQTTFeedRejectsInvalidMessages(t *testing.T) {
	client := &fakeMQTT{}
	feed := NewMQTTFeed(client, 0)
	require.NoError(t, feed.Start())

	deliver(client, "/fleet/vehicle/X/location", `not json`)
	deliver(client, "/fleet/vehicle/X/location", `{"latitude":91,"longitude":0,"timestamp":1}`)
	deliver(client, "/fleet/vehicle/X/location", `{"latitude":0,"longitude":0,"timestamp":0}`)
	deliver(client, "/fleet/vehicle/X/location", `{"latitude":0,"longitude":0,"speed_kmh":-4,"timestamp":5}`)

	_, err := feed.Provider("X").CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrNoTelemetry)
}

func TestMQTTFeedStaleFix(t *testing.T) {
	client := &fakeMQTT{}
	feed := NewMQTTFeed(client, 10*time.Second)
	feed.now = func() time.Time { return time.Unix(1775813460, 0) }
	require.NoError(t, feed.Start())

	deliver(client, "/fleet/vehicle/12004/location", `{"latitude":28.66,"longitude":77.43,"speed_kmh":80,"timestamp":1775813400}`)

	_, err := feed.Provider("12004").CurrentSpeed(context.Background())
	assert.ErrorIs(t, err, ErrStaleTelemetry)
}

func TestMQTTProviderPublishesCommand(t *testing.T) {
	client := &fakeMQTT{}
	feed := NewMQTTFeed(client, 0)

	cmd := domain.SpeedCommand{Speed: 75, Delta: -5, Restriction: 20, Tier: domain.TierA, Phase: domain.PhaseSlowingDown, IssuedAt: time.Unix(1775813400, 0)}
	require.NoError(t, feed.Provider("12951").ApplySpeedCommand(context.Background(), cmd))

	require.Len(t, client.published, 1)
	assert.Equal(t, "/fleet/vehicle/12951/command", client.published[0].topic)

	var msg commandMessage
	require.NoError(t, json.Unmarshal(client.published[0].payload, &msg))
	assert.Equal(t, 75.0, msg.SpeedKmh)
	assert.Equal(t, "A", msg.Tier)
	assert.Equal(t, "slowing_down", msg.Phase)
}

func TestMQTTProviderCommandErrors(t *testing.T) {
	boom := errors.New("not connected")
	client := &fakeMQTT{token: doneToken(boom)}
	err := NewMQTTFeed(client, 0).Provider("12951").ApplySpeedCommand(context.Background(), domain.SpeedCommand{})
	assert.ErrorIs(t, err, boom)

	pending := &fakeMQTT{token: &fakeToken{done: make(chan struct{})}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = NewMQTTFeed(pending, 0).Provider("12951").ApplySpeedCommand(ctx, domain.SpeedCommand{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
