package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	LogLevel       string
	TickInterval   time.Duration
	ArrivalGrace   time.Duration
	ResponseWindow time.Duration
	MinBattery     int
	MigrateOnStart bool
	MigrationsDir  string
	NATSURL        string
	NATSSubject    string
	OutboxEnabled  bool
	OutboxInterval time.Duration
	OutboxBatch    int
}

func Load() (Config, error) {
	return load(true)
}

// LoadWorker skips the JWT requirement: the outbox worker serves no HTTP.
func LoadWorker() (Config, error) {
	return load(false)
}

func load(requireJWT bool) (Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if requireJWT && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.LogLevel = getString("LOG_LEVEL", "info")
	cfg.TickInterval = getDuration("SIMULATION_TICK_INTERVAL", time.Second)
	cfg.ArrivalGrace = getDuration("ARRIVAL_GRACE", 5*time.Second)
	cfg.ResponseWindow = getDuration("CUSTOMER_RESPONSE_WINDOW", 40*time.Second)
	cfg.MinBattery = getInt("MIN_BATTERY_PERCENT", 30)
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)
	cfg.MigrationsDir = getString("MIGRATIONS_DIR", "migrations")
	cfg.NATSURL = getString("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubject = getString("NATS_SUBJECT", "delivery.events")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", true)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	return cfg, nil
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return cast.ToBool(v)
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}
