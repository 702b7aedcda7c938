// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/gobstocks/fundsync/internal/domain"
)

// Config holds application configuration.
type Config struct {
	DataDir        string // base directory for the snapshot database, always absolute
	FMPAPIKey      string
	FMPBaseURL     string
	StrictSync     bool // require the full completeness floor before committing
	RequiredYears  int  // complete fiscal years required under strict sync
	SyncDelay      time.Duration
	RatePerMinute  int // provider request ceiling
	LogLevel       string
	CronExpression string // schedule for daemon mode
}

// Load reads configuration from the environment, consulting a .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("FUNDSYNC_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		FMPAPIKey:      getEnv("FMP_API_KEY", ""),
		FMPBaseURL:     getEnv("FMP_BASE_URL", ""),
		StrictSync:     getEnvAsBool("STRICT_SYNC", false),
		RequiredYears:  getEnvAsInt("REQUIRED_YEARS", 30),
		SyncDelay:      time.Duration(getEnvAsInt("SYNC_DELAY_MS", 3000)) * time.Millisecond,
		RatePerMinute:  getEnvAsInt("PROVIDER_RATE_PER_MIN", 250),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CronExpression: getEnv("SYNC_CRON", "0 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.FMPAPIKey == "" {
		return fmt.Errorf("FMP_API_KEY is required")
	}
	if c.RequiredYears <= 0 {
		return fmt.Errorf("REQUIRED_YEARS must be positive, got %d", c.RequiredYears)
	}
	// Fused series are capped at the horizon, so a floor above it could
	// never be met by any ticker.
	if c.RequiredYears > domain.DefaultHorizonYears {
		return fmt.Errorf("REQUIRED_YEARS must not exceed %d, got %d",
			domain.DefaultHorizonYears, c.RequiredYears)
	}
	return nil
}

// DatabasePath returns the snapshot database location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "fundsync.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
