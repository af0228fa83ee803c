package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthModeDev = "dev"
	AuthModeJWT = "jwt"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendKafka    = "kafka"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	AuthMode   string
	DevSubject string
	DevEmail   string
	JWT        JWTConfig

	StorageBackend   string
	DatabaseURL      string
	PrimaryDBRole    string
	PrivilegedWrites bool

	TrackerBackend string
	RedisURL       string
	DraftTTL       time.Duration

	DegradedMode    bool
	DegradedBackend string
	DegradedDSN     string

	RoutingBackend string
	KafkaBrokers   []string
	RoutingTopic   string

	ReconcileInterval    time.Duration
	ReconcileMaxAttempts int

	// IdempotencyTTL bounds how long a completion response stays replayable.
	IdempotencyTTL time.Duration
}

// Load reads a .env file when one exists, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AuthMode:   getEnv("AUTH_MODE", AuthModeJWT),
		DevSubject: os.Getenv("DEV_SUBJECT"),
		DevEmail:   os.Getenv("DEV_EMAIL"),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendMemory),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		PrimaryDBRole:  getEnv("PRIMARY_DB_ROLE", "onboarding_app"),

		TrackerBackend: getEnv("TRACKER_BACKEND", BackendMemory),
		RedisURL:       os.Getenv("REDIS_URL"),

		DegradedBackend: getEnv("DEGRADED_BACKEND", BackendMemory),
		DegradedDSN:     os.Getenv("DEGRADED_DSN"),

		RoutingBackend: getEnv("ROUTING_BACKEND", BackendMemory),
		RoutingTopic:   getEnv("ROUTING_TOPIC", "onboarding.completions"),
	}

	var err error
	if cfg.PrivilegedWrites, err = getBool("PRIVILEGED_WRITES", true); err != nil {
		return Config{}, err
	}
	if cfg.DegradedMode, err = getBool("DEGRADED_MODE", true); err != nil {
		return Config{}, err
	}
	if cfg.DraftTTL, err = getDuration("DRAFT_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileMaxAttempts, err = getInt("RECONCILE_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	switch cfg.AuthMode {
	case AuthModeDev:
	case AuthModeJWT:
		jwtCfg, err := LoadJWTConfigFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.JWT = jwtCfg
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be %q or %q (got %q)", AuthModeDev, AuthModeJWT, cfg.AuthMode)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory or postgres (got %q)", c.StorageBackend)
	}

	switch c.TrackerBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when TRACKER_BACKEND=redis")
		}
	default:
		return fmt.Errorf("TRACKER_BACKEND must be memory or redis (got %q)", c.TrackerBackend)
	}

	switch c.DegradedBackend {
	case BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.DegradedDSN == "" {
			return fmt.Errorf("DEGRADED_DSN is required when DEGRADED_BACKEND=%s", c.DegradedBackend)
		}
	default:
		return fmt.Errorf("DEGRADED_BACKEND must be memory, sqlite or postgres (got %q)", c.DegradedBackend)
	}

	switch c.RoutingBackend {
	case BackendMemory:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when ROUTING_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("ROUTING_BACKEND must be memory or kafka (got %q)", c.RoutingBackend)
	}

	if c.ReconcileMaxAttempts < 1 {
		return fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be >= 1 (got %d)", c.ReconcileMaxAttempts)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a bool (e.g. true): %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 1m): %w", key, err)
	}
	return d, nil
}
