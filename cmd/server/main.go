package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"rail-hazard-monitor/internal/adapters/cache"
	"rail-hazard-monitor/internal/adapters/geocode"
	"rail-hazard-monitor/internal/adapters/publisher"
	"rail-hazard-monitor/internal/adapters/repositories"
	"rail-hazard-monitor/internal/adapters/telemetry"
	"rail-hazard-monitor/internal/api"
	"rail-hazard-monitor/internal/api/handlers"
	"rail-hazard-monitor/internal/config"
	"rail-hazard-monitor/internal/domain"
	"rail-hazard-monitor/internal/platform/db"
	"rail-hazard-monitor/internal/ports"
	"rail-hazard-monitor/internal/services"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, MQTT, RabbitMQ) behind ports,
// starts a control loop per registered train and serves the HTTP API.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	dsn := cfg.DBPath
	if cfg.DBDriver == db.DriverPostgres {
		dsn = cfg.DatabaseURL
	}

	sqlDB, err := db.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// SQLite is the local/demo mode: schema and demo data are (re)loaded on startup.
	if cfg.DBDriver == db.DriverSQLite {
		if err := initAndSeed(ctx, sqlDB, cfg.SeedPath); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	alertRepo := repositories.NewSQLAlertRepository(sqlDB, cfg.DBDriver)
	alertSource := services.NewCoalescingAlertSource(alertRepo, time.Second, cfg.FetchTimeout)

	stationCache := cache.NewTTLCache[string, domain.GeoPoint](cfg.StationCacheTTL, cfg.StationCacheSize, time.Now)
	var stations ports.StationLocator = repositories.NewSQLStationRepository(sqlDB, cfg.DBDriver)
	if cfg.ORSAPIKey != "" {
		ors, err := geocode.NewORSStationLocator(cfg.ORSAPIKey, cfg.GeocodeCountry)
		if err != nil {
			return err
		}
		stations = geocode.FallbackLocator{stations, ors}
	}
	locator := cache.NewCachedStationLocator(stations, stationCache, cache.DefaultLookupTimeout)
	g.Go(func() error {
		stationCache.RunCleanup(ctx, time.Hour)
		return nil
	})

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		defer rdb.Close()
	}

	factory, cleanup, err := telemetryFactory(cfg, rdb)
	if err != nil {
		return err
	}
	defer cleanup()

	transitionRepo := repositories.NewSQLTransitionRepository(sqlDB, cfg.DBDriver)
	sinks := []ports.TransitionSink{}

	if cfg.DBDriver == db.DriverPostgres {
		pool, err := db.OpenPool(ctx, cfg.DatabaseURL, 4)
		if err != nil {
			return err
		}
		defer pool.Close()

		tlog := publisher.NewTransitionLog(pool, 10*cfg.TransitionLogBatch, cfg.TransitionLogBatch, cfg.TransitionLogFlush)
		g.Go(func() error {
			tlog.Run(ctx)
			return nil
		})
		sinks = append(sinks, tlog)
	} else {
		sinks = append(sinks, transitionRepo)
	}

	broadcaster := publisher.NewBroadcaster(64)
	sinks = append(sinks, broadcaster)

	if rdb != nil {
		sinks = append(sinks, publisher.NewRedisPublisher(rdb))
	}

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		defer conn.Close()

		rmq, err := publisher.NewRabbitMQPublisher(conn)
		if err != nil {
			return err
		}
		defer rmq.Close()
		sinks = append(sinks, rmq)
	}

	policy := domain.DefaultSpeedPolicy()
	policy.RadiusKm = cfg.ProximityRadiusKm
	policy.AccelPerTick = cfg.AccelPerTick
	policy.HoldAtTarget = cfg.HoldAtTarget

	mm := services.NewMonitorManager(alertSource, services.MonitorConfig{
		TickInterval: cfg.TickInterval,
		FetchTimeout: cfg.FetchTimeout,
		AlertWindow:  cfg.AlertWindow,
		AlertLimit:   cfg.AlertLimit,
		Policy:       policy,
	}, services.WithTransitionSinks(sinks...))
	defer mm.StopAll()

	trainRepo := repositories.NewSQLTrainRepository(sqlDB)
	trains, err := trainRepo.ListTrains(ctx)
	if err != nil {
		return err
	}
	// Trains that cannot be placed are logged and skipped.
	_, _ = services.StartTrains(ctx, mm, trains, locator, factory)

	router := api.NewRouter(api.Handlers{
		Health: &handlers.HealthHandler{DB: sqlDB, Monitors: mm, StationCache: stationCache},
		Alerts: &handlers.AlertHandler{Repo: alertRepo},
		Monitors: &handlers.MonitorHandler{
			Monitors: mm,
			History:  transitionRepo,
			Start: func(ctx context.Context, vehicleID string) error {
				return services.StartTrain(ctx, mm, trainRepo, vehicleID, locator, factory)
			},
		},
		Export: &handlers.ExportHandler{Alerts: alertSource, Monitors: mm, Window: cfg.AlertWindow, Limit: cfg.AlertLimit},
		Stream: &handlers.StreamHandler{Feed: broadcaster},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Server listening addr=:%s telemetry=%s db=%s", cfg.Port, cfg.TelemetrySource, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mm.StopAll()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// telemetryFactory picks the provider backing each train's control loop.
func telemetryFactory(cfg config.Config, rdb *redis.Client) (services.TelemetryFactory, func(), error) {
	switch cfg.TelemetrySource {
	case config.TelemetryRedis:
		return func(train *domain.Train, _ domain.GeoPoint) (ports.TelemetryProvider, error) {
			return telemetry.NewRedisProvider(rdb, train.TrainID, cfg.TelemetryMaxAge), nil
		}, func() {}, nil

	case config.TelemetryMQTT:
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientID).
			SetAutoReconnect(true)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, nil, fmt.Errorf("mqtt connect: %w", token.Error())
		}

		feed := telemetry.NewMQTTFeed(client, cfg.TelemetryMaxAge)
		if err := feed.Start(); err != nil {
			client.Disconnect(250)
			return nil, nil, err
		}
		return func(train *domain.Train, _ domain.GeoPoint) (ports.TelemetryProvider, error) {
			return feed.Provider(train.TrainID), nil
		}, func() { client.Disconnect(250) }, nil

	default:
		var n atomic.Uint64
		return func(train *domain.Train, start domain.GeoPoint) (ports.TelemetryProvider, error) {
			return telemetry.NewSimulatedProvider(start, train.NominalSpeed, cfg.TickInterval, cfg.SimSeed+n.Add(1)), nil
		}, func() {}, nil
	}
}

func initAndSeed(ctx context.Context, sqlDB *sql.DB, seedPath string) error {
	if err := repositories.InitSchema(ctx, sqlDB); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if err := repositories.SeedFromJSON(ctx, sqlDB, db.DriverSQLite, seedPath, time.Now()); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	return nil
}
