package telemetry

import (
	"context"
	"math"
	"math/rand/v2"
	"rail-hazard-monitor/internal/domain"
	"sync"
	"time"
)

// SimulatedProvider moves a vehicle along a jittered heading at the
// commanded speed. The random source is seeded so runs are reproducible.
type SimulatedProvider struct {
	mu       sync.Mutex
	rng      *rand.Rand
	position domain.GeoPoint
	heading  float64
	speed    float64
	step     time.Duration
}

// NewSimulatedProvider starts at start with the given speed. Each position
// read advances the vehicle by one step of travel.
func NewSimulatedProvider(start domain.GeoPoint, speed float64, step time.Duration, seed uint64) *SimulatedProvider {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &SimulatedProvider{
		rng:      rng,
		position: start,
		heading:  rng.Float64() * 360,
		speed:    speed,
		step:     step,
	}
}

func (p *SimulatedProvider) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeoPoint{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.heading = math.Mod(p.heading+p.rng.NormFloat64()*3+360, 360)
	km := p.speed * p.step.Hours()
	if km > 0 {
		p.position = p.position.Offset(km, p.heading)
	}
	return p.position, nil
}

func (p *SimulatedProvider) CurrentSpeed(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed, nil
}

// ApplySpeedCommand sets the simulated speed to the commanded one.
func (p *SimulatedProvider) ApplySpeedCommand(ctx context.Context, cmd domain.SpeedCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = math.Max(0, cmd.Speed)
	return nil
}
