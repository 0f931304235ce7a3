package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "AtlasCore"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultFraudTimeout   = 2 * time.Second
	defaultSettleAttempts = 3
	defaultSettleBackoff  = 25 * time.Millisecond
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// FraudScorerURL points at the external risk model endpoint. Empty means
	// the local heuristic scorer is used directly.
	FraudScorerURL string
	// FraudTimeout bounds a single scoring call before falling back.
	FraudTimeout time.Duration

	// SettleAttempts bounds optimistic-concurrency retries per settlement.
	SettleAttempts int
	// SettleBackoff is the initial delay between settlement retries; it doubles
	// per attempt.
	SettleBackoff time.Duration

	// OperatorTokenHash is the bcrypt hash of the token required on
	// review-resolution and account administration endpoints.
	OperatorTokenHash string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		Env:               getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		FraudScorerURL:    os.Getenv("FRAUD_SCORER_URL"),
		FraudTimeout:      defaultFraudTimeout,
		SettleAttempts:    defaultSettleAttempts,
		SettleBackoff:     defaultSettleBackoff,
		OperatorTokenHash: os.Getenv("OPERATOR_TOKEN_HASH"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.FraudTimeout, err = durationEnv("FRAUD_TIMEOUT", cfg.FraudTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SettleBackoff, err = durationEnv("SETTLE_BACKOFF", cfg.SettleBackoff); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("SETTLE_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts < 1 {
			return Config{}, fmt.Errorf("invalid SETTLE_ATTEMPTS: %q", v)
		}
		cfg.SettleAttempts = attempts
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.OperatorTokenHash == "" {
			return Config{}, fmt.Errorf("OPERATOR_TOKEN_HASH must be set when APP_ENV=%s", cfg.Env)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment, where the
// in-memory stores may substitute for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
