package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/provider/pacing"
)

const (
	// DefaultMaxLocations is the upstream-safe ceiling on locations per run.
	DefaultMaxLocations = 50

	// DefaultRequestDelay is the spacing between successive location fetches.
	DefaultRequestDelay = 500 * time.Millisecond

	// DefaultLocationTimeout bounds the readings and metadata calls for one location.
	DefaultLocationTimeout = 30 * time.Second
)

// Upstream is the air quality provider consumed by the Ingester.
type Upstream interface {
	// ListLocationIDs returns up to limit location ids. It never fails;
	// transport and parse problems yield an empty slice.
	ListLocationIDs(ctx context.Context, limit int) []string

	// FetchLatestReadings returns the most recent value per sensor.
	// An empty slice means the location has no data.
	FetchLatestReadings(ctx context.Context, locationID string) ([]SensorReading, error)

	// FetchLocationMetadata returns the location's names, position and sensors.
	FetchLocationMetadata(ctx context.Context, locationID string) (*LocationMetadata, error)
}

// Pacer spaces out upstream calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IngesterConfig holds configuration for the Ingester.
type IngesterConfig struct {
	// Upstream is the air quality provider.
	Upstream Upstream

	// Logger for ingestion operations.
	Logger zerolog.Logger

	// Clock supplies ingestion timestamps (default: real clock).
	Clock clockwork.Clock

	// Pacer spaces location fetches. If nil, one is built from RequestDelay.
	Pacer Pacer

	// RequestDelay is the spacing between location fetches (default: 500ms).
	RequestDelay time.Duration

	// MaxLocations caps the locations requested per run (default: 50).
	MaxLocations int

	// LocationTimeout bounds the calls for a single location (default: 30s).
	LocationTimeout time.Duration

	Metrics *Metrics
}

// Ingester fetches every location from the upstream provider and normalizes
// it into records. It performs no persistence.
type Ingester struct {
	upstream        Upstream
	normalizer      *Normalizer
	pacer           Pacer
	logger          zerolog.Logger
	maxLocations    int
	locationTimeout time.Duration
	metrics         *Metrics
}

// NewIngester creates a new Ingester.
func NewIngester(cfg IngesterConfig) *Ingester {
	maxLocations := cfg.MaxLocations
	if maxLocations <= 0 {
		maxLocations = DefaultMaxLocations
	}

	locationTimeout := cfg.LocationTimeout
	if locationTimeout == 0 {
		locationTimeout = DefaultLocationTimeout
	}

	pacer := cfg.Pacer
	if pacer == nil {
		delay := cfg.RequestDelay
		if delay == 0 {
			delay = DefaultRequestDelay
		}
		pacer = pacing.New(delay)
	}

	return &Ingester{
		upstream:        cfg.Upstream,
		normalizer:      NewNormalizer(cfg.Logger, cfg.Clock),
		pacer:           pacer,
		logger:          cfg.Logger,
		maxLocations:    maxLocations,
		locationTimeout: locationTimeout,
		metrics:         cfg.Metrics,
	}
}

// Run fetches up to maxLocations locations and returns the valid records.
// A failing location is logged and skipped; it never aborts the run.
func (i *Ingester) Run(ctx context.Context, maxLocations int) []*Record {
	limit := maxLocations
	if limit <= 0 || limit > i.maxLocations {
		limit = i.maxLocations
	}

	ids := i.upstream.ListLocationIDs(ctx, limit)
	if len(ids) == 0 {
		i.logger.Warn().Int("limit", limit).Msg("no locations returned by provider")
		return nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	i.logger.Debug().Int("locations", len(ids)).Msg("fetching locations")

	records := make([]*Record, 0, len(ids))
	failed := 0
	for n, id := range ids {
		if n > 0 {
			if err := i.pacer.Wait(ctx); err != nil {
				i.logger.Warn().Err(err).Int("remaining", len(ids)-n).Msg("ingestion stopped while pacing")
				break
			}
		}

		record, err := i.fetchLocation(ctx, id)
		if err != nil {
			failed++
			i.metrics.locationFailed(ctx)
			i.logger.Warn().Err(err).Str("location_id", id).Msg("skipping location")
			continue
		}
		if record == nil {
			continue
		}

		i.metrics.locationFetched(ctx)
		records = append(records, record)
	}

	i.logger.Info().
		Int("locations", len(ids)).
		Int("records", len(records)).
		Int("failed", failed).
		Msg("fetched air quality locations")

	return records
}

// fetchLocation fetches and normalizes one location. A nil record with a nil
// error means the location had no usable data.
func (i *Ingester) fetchLocation(ctx context.Context, id string) (record *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record, err = nil, fmt.Errorf("panic while fetching location: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, i.locationTimeout)
	defer cancel()

	readings, err := i.upstream.FetchLatestReadings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch latest readings: %w", err)
	}
	if len(readings) == 0 {
		i.logger.Debug().Str("location_id", id).Msg("location has no readings")
		return nil, nil
	}

	meta, err := i.upstream.FetchLocationMetadata(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch location metadata: %w", err)
	}

	return i.normalizer.Normalize(id, meta, readings), nil
}
