package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Scheduler triggers refreshes at a fixed interval.
type Scheduler struct {
	job        *RefreshJob
	interval   time.Duration
	runOnStart bool
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Job *RefreshJob

	// Interval between refreshes (default: 6h).
	Interval time.Duration

	// RunOnStart performs an initial load before the first tick.
	RunOnStart bool

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		job:        cfg.Job,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// Start blocks, refreshing on every tick until ctx is done. Failed runs are
// logged and retried on the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	if s.runOnStart {
		if err := s.job.InitialLoad(ctx); err != nil {
			s.logger.Error().Err(err).Msg("initial load failed")
		}
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("refresh scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh scheduler stopped")
			return
		case <-ticker.Chan():
			// Errors are already logged by the job.
			_, _ = s.job.Run(ctx)
		}
	}
}
