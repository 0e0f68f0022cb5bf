package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	Env       string
	DBSource  string
	RedisAddr string
	LockWait  time.Duration
	LockLease time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is fine; production injects real env vars.
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	lockWait, err := getDuration("LOCK_WAIT_TIMEOUT", time.Second)
	if err != nil {
		return nil, err
	}

	lockLease, err := getDuration("LOCK_LEASE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:      getEnv("SERVER_PORT", "8080"),
		Env:       getEnv("ENVIRONMENT", "development"),
		DBSource:  dbSource,
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		LockWait:  lockWait,
		LockLease: lockLease,
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 500ms or 15s: %w", key, err)
	}
	return d, nil
}
