package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aqtracker/aqtracker/internal/airquality"
)

const tracerName = "github.com/aqtracker/aqtracker/internal/worker"

// Refresher runs refreshes against the record store.
type Refresher interface {
	Refresh(ctx context.Context) (*airquality.RefreshResult, error)
	Empty(ctx context.Context) (bool, error)
}

// RefreshJob runs refreshes and keeps statistics about them.
type RefreshJob struct {
	refresher Refresher
	logger    zerolog.Logger
	clock     clockwork.Clock

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	SkippedRefreshes  int64
	RecordsIngested   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Refresher Refresher
	Logger    zerolog.Logger

	// Clock for run timestamps (default: real clock).
	Clock clockwork.Clock
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RefreshJob{
		refresher: cfg.Refresher,
		logger:    cfg.Logger,
		clock:     clock,
		metrics:   &RefreshMetrics{},
	}
}

// Run executes one refresh. A refresh that is already running is reported
// as airquality.ErrRefreshInProgress and counted as skipped.
func (j *RefreshJob) Run(ctx context.Context) (*airquality.RefreshResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "worker.refresh")
	defer span.End()

	start := j.clock.Now()
	result, err := j.refresher.Refresh(ctx)
	duration := j.clock.Since(start)

	switch {
	case errors.Is(err, airquality.ErrRefreshInProgress):
		j.logger.Info().Msg("refresh already running, skipping")
		span.SetAttributes(attribute.Bool("refresh.skipped", true))
		j.record(func(m *RefreshMetrics) { m.SkippedRefreshes++ })
	case err != nil:
		j.logger.Error().Err(err).Dur("duration", duration).Msg("refresh job failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		j.record(func(m *RefreshMetrics) { m.FailedRefreshes++ })
	default:
		span.SetAttributes(
			attribute.Int("refresh.records_fetched", result.RecordsFetched),
			attribute.Int("refresh.records_ingested", result.RecordsIngested),
		)
		j.logger.Info().
			Int("fetched", result.RecordsFetched).
			Int("ingested", result.RecordsIngested).
			Dur("duration", duration).
			Msg("refresh job completed")
		j.record(func(m *RefreshMetrics) {
			m.SuccessfulRefresh++
			m.RecordsIngested += int64(result.RecordsIngested)
			m.LastRefreshAt = start.Add(duration)
			m.LastRefreshDuration = duration
			m.TotalDuration += duration
		})
	}

	return result, err
}

// InitialLoad runs a refresh if the store holds no records yet.
func (j *RefreshJob) InitialLoad(ctx context.Context) error {
	empty, err := j.refresher.Empty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		j.logger.Debug().Msg("store already populated, skipping initial load")
		return nil
	}

	j.logger.Info().Msg("store is empty, running initial load")
	_, err = j.Run(ctx)
	return err
}

func (j *RefreshJob) record(update func(m *RefreshMetrics)) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	j.metrics.TotalRefreshes++
	update(j.metrics)
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		SkippedRefreshes:    j.metrics.SkippedRefreshes,
		RecordsIngested:     j.metrics.RecordsIngested,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"skipped_refreshes":     m.SkippedRefreshes,
		"records_ingested":      m.RecordsIngested,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
