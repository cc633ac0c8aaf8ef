package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/ports"
	"strings"
	"sync"
)

// TelemetryFactory builds the telemetry provider for one train once its
// starting position is known.
type TelemetryFactory func(train *domain.Train, start domain.GeoPoint) (ports.TelemetryProvider, error)

type startPosition struct {
	train *domain.Train
	point domain.GeoPoint
	err   error
}

// StartTrains starts a monitor for every train. A train without a stored
// location is placed at its start station, resolved through locator.
// Trains that cannot be placed or started are skipped; their errors are
// joined into the returned error. The number of monitors started is returned.
func StartTrains(
	ctx context.Context,
	mm *MonitorManager,
	trains []*domain.Train,
	locator ports.StationLocator,
	factory TelemetryFactory,
) (int, error) {
	positions := resolveStartPositions(ctx, trains, locator)

	started := 0
	var errs []error
	for _, sp := range positions {
		if sp.err != nil {
			errs = append(errs, sp.err)
			continue
		}

		provider, err := factory(sp.train, sp.point)
		if err != nil {
			errs = append(errs, fmt.Errorf("start trains: train %s: telemetry: %w", sp.train.TrainID, err))
			continue
		}

		if err := mm.Start(ctx, sp.train.TrainID, sp.train.NominalSpeed, provider); err != nil {
			errs = append(errs, fmt.Errorf("start trains: train %s: %w", sp.train.TrainID, err))
			continue
		}
		started++
	}

	for _, err := range errs {
		log.Printf("op=monitor.bootstrap err=%v", err)
	}
	log.Printf("op=monitor.bootstrap trains=%d started=%d failed=%d", len(trains), started, len(errs))

	return started, errors.Join(errs...)
}

// StartTrain (re)starts the monitor for one registered train.
func StartTrain(
	ctx context.Context,
	mm *MonitorManager,
	trains ports.TrainRepository,
	trainID string,
	locator ports.StationLocator,
	factory TelemetryFactory,
) error {
	all, err := trains.ListTrains(ctx)
	if err != nil {
		return fmt.Errorf("start train %s: list trains: %w", trainID, err)
	}

	for _, t := range all {
		if t.TrainID != trainID {
			continue
		}
		sp := resolveStartPositions(ctx, []*domain.Train{t}, locator)[0]
		if sp.err != nil {
			return sp.err
		}
		provider, err := factory(t, sp.point)
		if err != nil {
			return fmt.Errorf("start train %s: telemetry: %w", trainID, err)
		}
		if err := mm.Start(ctx, t.TrainID, t.NominalSpeed, provider); err != nil {
			return fmt.Errorf("start train %s: %w", trainID, err)
		}
		return nil
	}

	return fmt.Errorf("start train %s: %w", trainID, ErrTrainNotFound)
}

// resolveStartPositions looks up station coordinates concurrently, at most
// five lookups at a time. Output order matches trains.
func resolveStartPositions(ctx context.Context, trains []*domain.Train, locator ports.StationLocator) []startPosition {
	out := make([]startPosition, len(trains))

	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup

	for i, train := range trains {
		out[i].train = train

		if train.Location != nil && train.Location.Valid() {
			out[i].point = *train.Location
			continue
		}

		code := strings.TrimSpace(train.StartStation)
		if code == "" {
			out[i].err = fmt.Errorf("start trains: train %s: no location and no start station", train.TrainID)
			continue
		}
		if locator == nil {
			out[i].err = fmt.Errorf("start trains: train %s: no station locator for %q", train.TrainID, code)
			continue
		}

		wg.Add(1)
		go func(i int, code string) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			p, err := locator.Locate(ctx, code)
			if err != nil {
				out[i].err = fmt.Errorf("start trains: train %s: locate station %q: %w", out[i].train.TrainID, code, err)
				return
			}
			out[i].point = p
		}(i, code)
	}

	wg.Wait()
	return out
}
