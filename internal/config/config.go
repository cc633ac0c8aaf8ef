package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TelemetrySimulated = "simulated"
	TelemetryRedis     = "redis"
	TelemetryMQTT      = "mqtt"
)

// Process configuration read from the environment.
type Config struct {
	Port     string
	DBDriver string
	DBPath   string
	// Postgres URL; required when DBDriver is "pgx".
	DatabaseURL string
	SeedPath    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RabbitMQURL   string
	MQTTBroker    string
	MQTTClientID  string

	TelemetrySource string
	TelemetryMaxAge time.Duration
	SimSeed         uint64

	TickInterval      time.Duration
	FetchTimeout      time.Duration
	AlertWindow       time.Duration
	AlertLimit        int
	ProximityRadiusKm float64
	AccelPerTick      float64
	HoldAtTarget      bool

	StationCacheTTL  time.Duration
	StationCacheSize int
	// When set, stations missing from the registry are geocoded through OpenRouteService.
	ORSAPIKey      string
	GeocodeCountry string

	TransitionLogBatch int
	TransitionLogFlush time.Duration
}

// Load reads every key, applying defaults, and validates the combination.
func Load() (Config, error) {
	cfg := Config{
		Port:     Get("PORT", "8080"),
		DBDriver: Get("DB_DRIVER", "sqlite"),
		DBPath:   Get("DB_PATH", "data/app.db"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SeedPath:    Get("SEED_PATH", "data/seeds/demo.json"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetInt("REDIS_DB", 0),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		MQTTBroker:    os.Getenv("MQTT_BROKER"),
		MQTTClientID:  Get("MQTT_CLIENT_ID", "rail-hazard-monitor"),

		TelemetrySource: strings.ToLower(Get("TELEMETRY_SOURCE", TelemetrySimulated)),
		TelemetryMaxAge: GetDuration("TELEMETRY_MAX_AGE", 10*time.Second),
		SimSeed:         uint64(GetInt("SIM_SEED", 42)),

		TickInterval:      GetDuration("TICK_INTERVAL", time.Second),
		FetchTimeout:      GetDuration("FETCH_TIMEOUT", 800*time.Millisecond),
		AlertWindow:       GetDuration("ALERT_WINDOW", 5*time.Minute),
		AlertLimit:        GetInt("ALERT_LIMIT", 50),
		ProximityRadiusKm: GetFloat("PROXIMITY_RADIUS_KM", 2),
		AccelPerTick:      GetFloat("ACCEL_RATE_KMH", 0.5),
		HoldAtTarget:      GetBool("HOLD_AT_TARGET", false),

		StationCacheTTL:  GetDuration("STATION_CACHE_TTL", 24*time.Hour),
		StationCacheSize: GetInt("STATION_CACHE_SIZE", 1000),
		ORSAPIKey:        os.Getenv("ORS_API_KEY"),
		GeocodeCountry:   Get("GEOCODE_COUNTRY", "IN"),

		TransitionLogBatch: GetInt("TRANSITION_LOG_BATCH", 100),
		TransitionLogFlush: GetDuration("TRANSITION_LOG_FLUSH", time.Second),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "pgx":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=pgx")
		}
	default:
		return fmt.Errorf("DB_DRIVER: unsupported value %q", c.DBDriver)
	}

	switch c.TelemetrySource {
	case TelemetrySimulated:
	case TelemetryRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when TELEMETRY_SOURCE=redis")
		}
	case TelemetryMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when TELEMETRY_SOURCE=mqtt")
		}
	default:
		return fmt.Errorf("TELEMETRY_SOURCE: unsupported value %q", c.TelemetrySource)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.FetchTimeout <= 0 || c.FetchTimeout > c.TickInterval {
		return fmt.Errorf("FETCH_TIMEOUT must be positive and at most TICK_INTERVAL")
	}
	if c.ProximityRadiusKm <= 0 {
		return fmt.Errorf("PROXIMITY_RADIUS_KM must be positive")
	}
	if c.AccelPerTick <= 0 {
		return fmt.Errorf("ACCEL_RATE_KMH must be positive")
	}
	if c.AlertLimit <= 0 {
		return fmt.Errorf("ALERT_LIMIT must be positive")
	}
	return nil
}

// Get returns the value of key, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config key=%s value=%q err=not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("config key=%s value=%q err=not a number, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config key=%s value=%q err=not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func GetBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config key=%s value=%q err=not a boolean, using %t", key, v, fallback)
		return fallback
	}
	return b
}
