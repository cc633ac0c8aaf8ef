package telemetry

import (
	"context"
	"errors"
	"rail-hazard-monitor/internal/domain"
	"sync"
)

// ScriptedProvider replays a fixed route and follows speed commands exactly.
// Errors queued with FailNext are returned by the next position read.
type ScriptedProvider struct {
	mu        sync.Mutex
	positions []domain.GeoPoint
	next      int
	speed     float64
	readErrs  []error
	applyErrs []error
	commands  []domain.SpeedCommand
	gate      <-chan struct{}
}

// NewScriptedProvider returns a provider that reports positions in order and
// repeats the last one once the route is exhausted.
func NewScriptedProvider(speed float64, positions ...domain.GeoPoint) *ScriptedProvider {
	return &ScriptedProvider{positions: positions, speed: speed}
}

// FailNext makes the next CurrentPosition call return err.
func (p *ScriptedProvider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErrs = append(p.readErrs, err)
}

// FailNextApply makes the next ApplySpeedCommand call return err.
func (p *ScriptedProvider) FailNextApply(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyErrs = append(p.applyErrs, err)
}

// HoldReads blocks position reads until gate is closed or the read's context ends.
func (p *ScriptedProvider) HoldReads(gate <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = gate
}

func (p *ScriptedProvider) SetSpeed(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = v
}

// Commands returns every command applied so far.
func (p *ScriptedProvider) Commands() []domain.SpeedCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SpeedCommand, len(p.commands))
	copy(out, p.commands)
	return out
}

func (p *ScriptedProvider) CurrentPosition(ctx context.Context) (domain.GeoPoint, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.GeoPoint{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.readErrs) > 0 {
		err := p.readErrs[0]
		p.readErrs = p.readErrs[1:]
		return domain.GeoPoint{}, err
	}
	if len(p.positions) == 0 {
		return domain.GeoPoint{}, errors.New("scripted telemetry: no positions")
	}

	i := p.next
	if i >= len(p.positions) {
		i = len(p.positions) - 1
	} else {
		p.next++
	}
	return p.positions[i], nil
}

func (p *ScriptedProvider) CurrentSpeed(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed, nil
}

func (p *ScriptedProvider) ApplySpeedCommand(ctx context.Context, cmd domain.SpeedCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.applyErrs) > 0 {
		err := p.applyErrs[0]
		p.applyErrs = p.applyErrs[1:]
		return err
	}

	p.commands = append(p.commands, cmd)
	p.speed = cmd.Speed
	return nil
}
