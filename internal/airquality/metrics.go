package airquality

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aqtracker/aqtracker/internal/airquality"

// Metrics holds the ingestion and cache instruments. A nil *Metrics records nothing.
type Metrics struct {
	runDuration      metric.Float64Histogram
	runTotal         metric.Int64Counter
	locationsFetched metric.Int64Counter
	locationsFailed  metric.Int64Counter
	recordsUpserted  metric.Int64Counter
	cacheHit         metric.Int64Counter
	cacheMiss        metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	runDuration, err := meter.Float64Histogram(
		"airquality.refresh.duration",
		metric.WithDescription("Duration of air quality refresh runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runTotal, err := meter.Int64Counter(
		"airquality.refresh.total",
		metric.WithDescription("Total number of refresh runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	locationsFetched, err := meter.Int64Counter(
		"airquality.locations.fetched",
		metric.WithDescription("Locations normalized into a valid record"),
		metric.WithUnit("{location}"),
	)
	if err != nil {
		return nil, err
	}

	locationsFailed, err := meter.Int64Counter(
		"airquality.locations.failed",
		metric.WithDescription("Locations skipped because an upstream call failed"),
		metric.WithUnit("{location}"),
	)
	if err != nil {
		return nil, err
	}

	recordsUpserted, err := meter.Int64Counter(
		"airquality.records.upserted",
		metric.WithDescription("Rows inserted or updated by refresh runs"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"airquality.cache.hit",
		metric.WithDescription("Aggregate cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"airquality.cache.miss",
		metric.WithDescription("Aggregate cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runDuration:      runDuration,
		runTotal:         runTotal,
		locationsFetched: locationsFetched,
		locationsFailed:  locationsFailed,
		recordsUpserted:  recordsUpserted,
		cacheHit:         cacheHit,
		cacheMiss:        cacheMiss,
	}, nil
}

func (m *Metrics) recordRun(ctx context.Context, outcome string, d time.Duration, upserted int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runDuration.Record(ctx, d.Seconds(), attrs)
	m.runTotal.Add(ctx, 1, attrs)
	if upserted > 0 {
		m.recordsUpserted.Add(ctx, int64(upserted))
	}
}

func (m *Metrics) locationFetched(ctx context.Context) {
	if m == nil {
		return
	}
	m.locationsFetched.Add(ctx, 1)
}

func (m *Metrics) locationFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.locationsFailed.Add(ctx, 1)
}

func (m *Metrics) cacheLookup(ctx context.Context, entry string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("entry", entry))
	if hit {
		m.cacheHit.Add(ctx, 1, attrs)
		return
	}
	m.cacheMiss.Add(ctx, 1, attrs)
}
