// Package worker runs air quality refreshes in the background.
package worker

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultInterval is the time between scheduled refreshes.
	DefaultInterval = 6 * time.Hour
)

// Config holds configuration for the background worker.
type Config struct {
	// Interval between scheduled refreshes (default: 6h).
	Interval time.Duration

	// RunOnStart loads data once at startup when the store is empty.
	RunOnStart bool

	// ProjectID and Subscription enable the Pub/Sub trigger when both are set.
	ProjectID    string
	Subscription string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	interval, err := time.ParseDuration(getEnvOrDefault("REFRESH_INTERVAL", DefaultInterval.String()))
	if err != nil || interval <= 0 {
		interval = DefaultInterval
	}
	runOnStart, err := strconv.ParseBool(getEnvOrDefault("REFRESH_ON_START", "true"))
	if err != nil {
		runOnStart = true
	}

	return Config{
		Interval:     interval,
		RunOnStart:   runOnStart,
		ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		Subscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}
}

// PubSubEnabled reports whether a Pub/Sub subscription is configured.
func (c Config) PubSubEnabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
