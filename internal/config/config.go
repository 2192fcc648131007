package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Sync     SyncConfig
	Dispatch DispatchConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret string
	Disabled  bool
}

// SyncSink names where state-change events are forwarded.
type SyncSink string

const (
	SyncSinkLog   SyncSink = "log"
	SyncSinkRedis SyncSink = "redis"
	SyncSinkKafka SyncSink = "kafka"
)

// SyncConfig configures the outbound sync of state-change events.
type SyncConfig struct {
	Sink         SyncSink
	RedisStream  string
	DedupeTTL    time.Duration
	KafkaBrokers []string
	KafkaTopic   string
}

// DispatchConfig tunes the ranking engine and lifecycle guards.
type DispatchConfig struct {
	GeofenceRadiusMeters float64
	MaxOpenTickets       int
	CatalogPath          string
	TicketLockTTL        time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	radius, err := strconv.ParseFloat(getEnv("GEOFENCE_RADIUS_METERS", "300"), 64)
	if err != nil || radius <= 0 {
		return nil, fmt.Errorf("invalid GEOFENCE_RADIUS_METERS: %q", os.Getenv("GEOFENCE_RADIUS_METERS"))
	}

	sink := SyncSink(strings.ToLower(getEnv("SYNC_SINK", string(SyncSinkLog))))
	switch sink {
	case SyncSinkLog, SyncSinkRedis, SyncSinkKafka:
	default:
		return nil, fmt.Errorf("invalid SYNC_SINK: %q", sink)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "field-dispatch-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Disabled:  getEnvAsBool("AUTH_DISABLED", false),
		},
		Sync: SyncConfig{
			Sink:         sink,
			RedisStream:  getEnv("SYNC_REDIS_STREAM", "ticket-events"),
			DedupeTTL:    time.Duration(getEnvAsInt("SYNC_DEDUPE_TTL_HOURS", 72)) * time.Hour,
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "ticket-events"),
		},
		Dispatch: DispatchConfig{
			GeofenceRadiusMeters: radius,
			MaxOpenTickets:       getEnvAsInt("DISPATCH_MAX_OPEN_TICKETS", 5),
			CatalogPath:          os.Getenv("DISPATCH_CATALOG_PATH"),
			TicketLockTTL:        time.Duration(getEnvAsInt("TICKET_LOCK_TTL_SECONDS", 10)) * time.Second,
		},
	}

	if cfg.Sync.Sink == SyncSinkKafka && len(cfg.Sync.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("SYNC_SINK=kafka requires KAFKA_BROKERS")
	}
	if cfg.Sync.Sink == SyncSinkRedis && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("SYNC_SINK=redis requires REDIS_ADDR")
	}
	if cfg.Logger.Format != "json" && cfg.Logger.Format != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.Logger.Format)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
