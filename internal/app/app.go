// Package app assembles the air quality pipeline shared by the API server
// and the background worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/advisory"
	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/airquality/openaq"
	"github.com/aqtracker/aqtracker/internal/database"
	"github.com/aqtracker/aqtracker/internal/provider/resilience"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// ErrUnknownStore is returned for a STORE value other than memory or postgres.
var ErrUnknownStore = errors.New("unknown store")

// Config holds the pipeline configuration.
type Config struct {
	// Store selects the record store backend.
	Store    string
	Database database.Config

	OpenAQBaseURL string
	OpenAQAPIKey  string
	OpenAQTimeout time.Duration
	RequestDelay  time.Duration
	MaxLocations  int

	// OpenAIAPIKey enables AI advisories when set.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	delay, err := time.ParseDuration(getEnvOrDefault("OPENAQ_REQUEST_DELAY", "500ms"))
	if err != nil || delay < 0 {
		delay = airquality.DefaultRequestDelay
	}
	timeout, err := time.ParseDuration(getEnvOrDefault("OPENAQ_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxLocations, err := strconv.Atoi(getEnvOrDefault("OPENAQ_MAX_LOCATIONS", "50"))
	if err != nil || maxLocations <= 0 {
		maxLocations = airquality.DefaultMaxLocations
	}

	return Config{
		Store:         getEnvOrDefault("STORE", StorePostgres),
		Database:      database.ConfigFromEnv(),
		OpenAQBaseURL: getEnvOrDefault("OPENAQ_BASE_URL", openaq.DefaultBaseURL),
		OpenAQAPIKey:  os.Getenv("OPENAQ_API_KEY"),
		OpenAQTimeout: timeout,
		RequestDelay:  delay,
		MaxLocations:  maxLocations,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", advisory.DefaultModel),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", advisory.DefaultBaseURL),
	}
}

// Pinger checks that the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App is the wired pipeline.
type App struct {
	Registry   *resilience.Registry
	AirQuality *airquality.Service
	Advisory   *advisory.Service

	// Store is nil for the in-memory backend.
	Store     Pinger
	StoreName string

	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects the record store and wires the provider clients and services.
// Close must be called to release the database pool.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*App, error) {
	a := &App{Registry: resilience.NewRegistry(), logger: logger}

	var repo airquality.Repository
	switch cfg.Store {
	case StoreMemory:
		repo = airquality.NewInMemoryRepository(nil)
		a.StoreName = "memory"
		logger.Warn().Msg("using in-memory store, records are lost on restart")
	case StorePostgres:
		pool, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		repo = airquality.NewPostgresRepository(pool)
		a.pool = pool
		a.Store = pool
		a.StoreName = "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}

	metrics, err := airquality.NewMetrics()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	client := openaq.NewClient(openaq.ClientConfig{
		BaseURL:  cfg.OpenAQBaseURL,
		APIKey:   cfg.OpenAQAPIKey,
		Timeout:  cfg.OpenAQTimeout,
		Registry: a.Registry,
		Logger:   logger,
	})
	if cfg.OpenAQAPIKey == "" {
		logger.Warn().Msg("OPENAQ_API_KEY not set, upstream requests may be rejected")
	}

	ingester := airquality.NewIngester(airquality.IngesterConfig{
		Upstream:     client,
		Logger:       logger,
		RequestDelay: cfg.RequestDelay,
		MaxLocations: cfg.MaxLocations,
		Metrics:      metrics,
	})

	a.AirQuality = airquality.NewService(airquality.ServiceConfig{
		Fetcher:      ingester,
		Repository:   repo,
		Logger:       logger,
		MaxLocations: cfg.MaxLocations,
		Metrics:      metrics,
	})

	var completer advisory.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = advisory.NewOpenAIClient(advisory.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIModel,
			BaseURL:  cfg.OpenAIBaseURL,
			Registry: a.Registry,
		})
		logger.Info().Str("model", cfg.OpenAIModel).Msg("AI advisories enabled")
	} else {
		logger.Info().Msg("OPENAI_API_KEY not set, serving fallback advisories")
	}
	a.Advisory = advisory.NewService(advisory.Config{
		Completer: completer,
		Logger:    logger,
	})

	return a, nil
}

// WatchStore keeps the aggregate cache in step with refreshes committed by
// other processes. It blocks until ctx is done and returns at once for the
// in-memory store.
func (a *App) WatchStore(ctx context.Context) {
	if a.pool == nil {
		return
	}
	airquality.NewInvalidationListener(airquality.InvalidationListenerConfig{
		Acquire: airquality.PoolNotifications(a.pool),
		Target:  a.AirQuality,
		Logger:  a.logger,
	}).Run(ctx)
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
