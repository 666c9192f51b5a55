package airquality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	// DefaultRankingLimit is the ranking size used when none is requested.
	DefaultRankingLimit = 10

	// MaxRankingLimit caps ranking requests.
	MaxRankingLimit = 100

	statsTimeLayout = "January 2, 2006, 3:04 PM UTC"
)

// Fetcher produces the records for one ingestion run.
type Fetcher interface {
	Run(ctx context.Context, maxLocations int) []*Record
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Fetcher supplies normalized records, usually an *Ingester.
	Fetcher Fetcher

	// Repository stores the records.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// Clock for run timestamps (default: real clock).
	Clock clockwork.Clock

	// MaxLocations is passed to the fetcher on every run (default: 50).
	MaxLocations int

	// Estimator configures point estimates.
	Estimator EstimatorConfig

	Metrics *Metrics
}

// Service runs refreshes and serves cached aggregates over the stored records.
type Service struct {
	fetcher      Fetcher
	repo         Repository
	cache        *AggregateCache
	estimator    *Estimator
	logger       zerolog.Logger
	clock        clockwork.Clock
	maxLocations int
	metrics      *Metrics

	// runMu admits a single refresh at a time.
	runMu   sync.Mutex
	running atomic.Bool

	mu          sync.RWMutex
	lastResult  *RefreshResult
	lastError   error
	lastAttempt time.Time

	instance string
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	maxLocations := cfg.MaxLocations
	if maxLocations <= 0 {
		maxLocations = DefaultMaxLocations
	}

	return &Service{
		fetcher:      cfg.Fetcher,
		repo:         cfg.Repository,
		cache:        NewAggregateCache(cfg.Metrics),
		estimator:    NewEstimator(cfg.Estimator),
		logger:       cfg.Logger,
		clock:        clock,
		maxLocations: maxLocations,
		metrics:      cfg.Metrics,
		instance:     uuid.NewString()[:8],
	}
}

// Refresh fetches every location, upserts the valid records and invalidates
// the aggregate cache if any row changed.
//
// It returns ErrRefreshInProgress if another refresh is running. A started
// refresh is not cancelled by ctx. A fetch that yields no records is not an
// error; the result reports zero records ingested and the cache is kept. A
// failed upsert leaves both the store and the cache untouched and returns an
// error wrapping ErrPersistence.
func (s *Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.runMu.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	started := s.clock.Now()

	s.logger.Info().Int("max_locations", s.maxLocations).Msg("refreshing air quality data")

	records := s.fetcher.Run(ctx, s.maxLocations)
	result := &RefreshResult{
		RecordsFetched: len(records),
		StartedAt:      started.UTC(),
	}

	if len(records) == 0 {
		result.Duration = s.clock.Since(started)
		s.logger.Warn().Msg("no air quality data received from provider")
		s.metrics.recordRun(ctx, "empty", result.Duration, 0)
		s.finish(result, nil)
		return result, nil
	}

	affected, err := s.repo.Upsert(ctx, records)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		duration := s.clock.Since(started)
		s.logger.Error().Err(err).Int("records", len(records)).Msg("air quality refresh failed")
		s.metrics.recordRun(ctx, "failed", duration, 0)
		s.finish(nil, err)
		return nil, err
	}

	if affected > 0 {
		gen := s.cache.Invalidate()
		s.logger.Debug().Uint64("generation", gen).Msg("aggregate cache invalidated")
	}

	result.RecordsIngested = affected
	result.Duration = s.clock.Since(started)

	s.logger.Info().
		Int("fetched", result.RecordsFetched).
		Int("ingested", result.RecordsIngested).
		Dur("duration", result.Duration).
		Msg("air quality refresh completed")
	s.metrics.recordRun(ctx, "success", result.Duration, affected)
	s.finish(result, nil)

	return result, nil
}

func (s *Service) finish(result *RefreshResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAttempt = s.clock.Now().UTC()
	s.lastError = err
	if result != nil {
		s.lastResult = result
	}
}

// InvalidateCache drops every cached aggregate, for changes made to the store
// by another process.
func (s *Service) InvalidateCache() uint64 {
	gen := s.cache.Invalidate()
	s.logger.Debug().Uint64("generation", gen).Msg("aggregate cache invalidated")
	return gen
}

// CacheTag identifies the data currently served by this process. It changes
// whenever the aggregate cache is invalidated.
func (s *Service) CacheTag() string {
	return s.instance + "-" + strconv.FormatUint(s.cache.Generation(), 10)
}

// GlobalStats returns the aggregate statistics over every stored city.
func (s *Service) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	return cached(ctx, s.cache, "stats", s.computeGlobalStats)
}

func (s *Service) computeGlobalStats(ctx context.Context) (*GlobalStats, error) {
	s.logger.Debug().Msg("calculating global air quality statistics")

	var (
		stats GlobalStats
		err   error
	)

	if stats.TotalCities, err = s.repo.Count(ctx); err != nil {
		return nil, fmt.Errorf("count cities: %w", err)
	}
	if stats.TotalCountries, err = s.repo.CountDistinctCountries(ctx); err != nil {
		return nil, fmt.Errorf("count countries: %w", err)
	}

	avg, err := s.repo.AverageAQI(ctx)
	if err != nil {
		return nil, fmt.Errorf("average aqi: %w", err)
	}
	if avg != nil {
		stats.AverageAQI = math.Round(*avg*10) / 10
	}

	if stats.CitiesWithGoodAir, err = s.repo.CountByAQIRange(ctx, 0, 50); err != nil {
		return nil, fmt.Errorf("count good air: %w", err)
	}
	if stats.CitiesWithModerateAir, err = s.repo.CountByAQIRange(ctx, 51, 100); err != nil {
		return nil, fmt.Errorf("count moderate air: %w", err)
	}
	if stats.CitiesWithUnhealthyAir, err = s.repo.CountByAQIRange(ctx, 101, 500); err != nil {
		return nil, fmt.Errorf("count unhealthy air: %w", err)
	}

	cleanest, err := s.repo.FindCleanest(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("find cleanest: %w", err)
	}
	if len(cleanest) > 0 {
		stats.Cleanest = &Extreme{City: cleanest[0].City, Country: cleanest[0].Country, AQI: cleanest[0].AQI}
	}

	polluted, err := s.repo.FindMostPolluted(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("find most polluted: %w", err)
	}
	if len(polluted) > 0 {
		stats.MostPolluted = &Extreme{City: polluted[0].City, Country: polluted[0].Country, AQI: polluted[0].AQI}
	}

	stats.LastUpdated = s.clock.Now().UTC().Format(statsTimeLayout)

	return &stats, nil
}

// Cities returns every stored city ordered by name.
func (s *Service) Cities(ctx context.Context) ([]*Record, error) {
	return cached(ctx, s.cache, "cities", s.repo.FindAll)
}

// City returns the record for one city, matched case-insensitively.
func (s *Service) City(ctx context.Context, name string) (*Record, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, ErrCityNotFound
	}
	return cached(ctx, s.cache, "city:"+key, func(ctx context.Context) (*Record, error) {
		return s.repo.FindByCity(ctx, key)
	})
}

// CountryCities returns the cities of one country.
// It returns ErrCountryNotFound if the country has no stored cities.
func (s *Service) CountryCities(ctx context.Context, country string) ([]*Record, error) {
	key := strings.ToLower(strings.TrimSpace(country))
	if key == "" {
		return nil, ErrCountryNotFound
	}
	return cached(ctx, s.cache, "country:"+key, func(ctx context.Context) ([]*Record, error) {
		records, err := s.repo.FindByCountry(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrCountryNotFound
		}
		return records, nil
	})
}

// Countries returns the distinct country names in alphabetical order.
func (s *Service) Countries(ctx context.Context) ([]string, error) {
	return cached(ctx, s.cache, "countries", s.repo.FindAllCountries)
}

// MostPolluted returns up to limit cities, highest AQI first.
func (s *Service) MostPolluted(ctx context.Context, limit int) ([]*Record, error) {
	return s.repo.FindMostPolluted(ctx, clampLimit(limit))
}

// Cleanest returns up to limit cities with a positive AQI, lowest first.
func (s *Service) Cleanest(ctx context.Context, limit int) ([]*Record, error) {
	return s.repo.FindCleanest(ctx, clampLimit(limit))
}

// GoodAir returns cities with AQI 0-50, lowest first.
func (s *Service) GoodAir(ctx context.Context) ([]*Record, error) {
	return cached(ctx, s.cache, "good", func(ctx context.Context) ([]*Record, error) {
		records, err := s.repo.FindByAQIRange(ctx, 0, 50)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(records, func(i, j int) bool { return records[i].AQI < records[j].AQI })
		return records, nil
	})
}

// UnhealthyAir returns cities with AQI above 100, highest first.
func (s *Service) UnhealthyAir(ctx context.Context) ([]*Record, error) {
	return cached(ctx, s.cache, "unhealthy", func(ctx context.Context) ([]*Record, error) {
		records, err := s.repo.FindByAQIRange(ctx, 101, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(records, func(i, j int) bool { return records[i].AQI > records[j].AQI })
		return records, nil
	})
}

// Estimate returns the air quality estimated at a point from the nearest
// monitored cities.
func (s *Service) Estimate(ctx context.Context, lat, lon float64) (*Estimate, error) {
	cities, err := s.Cities(ctx)
	if err != nil {
		return nil, err
	}
	return s.estimator.Estimate(lat, lon, cities)
}

// Empty reports whether the store holds no records.
func (s *Service) Empty(ctx context.Context) (bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Status returns information about refreshes and the cache.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Refreshing:      s.running.Load(),
		CacheGeneration: s.cache.Generation(),
		CachedEntries:   s.cache.Len(),
		LastAttempt:     s.lastAttempt,
	}
	if s.lastResult != nil {
		r := *s.lastResult
		status.LastRefresh = &r
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

// Status represents the current state of refreshes and the cache.
type Status struct {
	Refreshing      bool
	CacheGeneration uint64
	CachedEntries   int
	LastAttempt     time.Time
	LastRefresh     *RefreshResult
	LastError       string
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRankingLimit
	}
	if limit > MaxRankingLimit {
		return MaxRankingLimit
	}
	return limit
}
