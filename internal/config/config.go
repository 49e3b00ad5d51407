package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	LogLevel      string
	Environment   string
	TallyBackend  string // "redis" or "postgres"
	RedisURL      string
	DatabaseURL   string
	LedgerPath    string        // file backing the local vote ledger
	SweepInterval time.Duration // cadence of the expiry sweep
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Environment:   getEnv("ENVIRONMENT", "production"),
		TallyBackend:  getEnv("TALLY_BACKEND", "redis"),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		LedgerPath:    getEnv("LEDGER_PATH", defaultLedgerPath()),
		SweepInterval: getDurationEnv("SWEEP_INTERVAL", time.Minute),
	}, nil
}

// defaultLedgerPath stores the ledger next to the user's other app state
func defaultLedgerPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "karaoke_votes.json"
	}
	return filepath.Join(dir, "karaoke-client", "karaoke_votes.json")
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
