package telemetry

import (
	"context"
	"errors"
	"rail-hazard-monitor/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedProviderReplaysRoute(t *testing.T) {
	a := domain.GeoPoint{Lon: 77, Lat: 28}
	b := domain.GeoPoint{Lon: 77.01, Lat: 28}
	p := NewScriptedProvider(80, a, b)
	ctx := context.Background()

	got1, err := p.CurrentPosition(ctx)
	require.NoError(t, err)
	got2, _ := p.CurrentPosition(ctx)
	got3, _ := p.CurrentPosition(ctx)

	assert.Equal(t, a, got1)
	assert.Equal(t, b, got2)
	assert.Equal(t, b, got3)
}

func TestScriptedProviderFollowsCommandsAndFailures(t *testing.T) {
	p := NewScriptedProvider(80, domain.GeoPoint{Lon: 77, Lat: 28})
	ctx := context.Background()
	boom := errors.New("boom")

	p.FailNext(boom)
	_, err := p.CurrentPosition(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = p.CurrentPosition(ctx)
	assert.NoError(t, err)

	require.NoError(t, p.ApplySpeedCommand(ctx, domain.SpeedCommand{Speed: 75}))
	speed, _ := p.CurrentSpeed(ctx)
	assert.Equal(t, 75.0, speed)

	p.FailNextApply(boom)
	assert.ErrorIs(t, p.ApplySpeedCommand(ctx, domain.SpeedCommand{Speed: 70}), boom)
	speed, _ = p.CurrentSpeed(ctx)
	assert.Equal(t, 75.0, speed)
	assert.Len(t, p.Commands(), 1)
}
