// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// Upstream provider.
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	FailureCooldown time.Duration

	// Background collection cadence.
	CollectionInterval time.Duration
	PredictionInterval time.Duration

	// Path to a JSON region catalog; empty means the embedded default set.
	RegionsPath string

	// WebSocket connection limits.
	MaxClients      int64
	MaxClientsPerIP int
	ConnectionRate  float64
	ConnectionBurst int
}

// Load reads configuration from the environment, applying defaults where
// unset. Cadence and timeout values must parse as Go durations.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8001"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", ""),
		RegionsPath:     getEnv("REGIONS_PATH", ""),
	}

	var err error
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FailureCooldown, err = getDuration("FAILURE_COOLDOWN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CollectionInterval, err = getDuration("COLLECTION_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PredictionInterval, err = getDuration("PREDICTION_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.MaxClients, err = getInt64("MAX_CLIENTS", 1000); err != nil {
		return nil, err
	}
	maxPerIP, err := getInt64("MAX_CLIENTS_PER_IP", 20)
	if err != nil {
		return nil, err
	}
	cfg.MaxClientsPerIP = int(maxPerIP)

	if cfg.ConnectionRate, err = getFloat("CONNECTION_RATE", 10); err != nil {
		return nil, err
	}
	burst, err := getInt64("CONNECTION_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.ConnectionBurst = int(burst)

	if cfg.CollectionInterval <= 0 {
		return nil, fmt.Errorf("COLLECTION_INTERVAL must be positive")
	}
	if cfg.PredictionInterval <= 0 {
		return nil, fmt.Errorf("PREDICTION_INTERVAL must be positive")
	}
	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. \"30s\", \"5m\"): %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
