package airquality_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqtracker/aqtracker/internal/airquality"
)

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, maxLocations int) []*airquality.Record

func (f fetcherFunc) Run(ctx context.Context, maxLocations int) []*airquality.Record {
	return f(ctx, maxLocations)
}

// failingRepository fails every upsert and delegates reads.
type failingRepository struct {
	airquality.Repository
}

func (failingRepository) Upsert(context.Context, []*airquality.Record) (int, error) {
	return 0, errors.New("connection reset")
}

type serviceFixture struct {
	upstream *fakeUpstream
	repo     *airquality.InMemoryRepository
	clock    *clockwork.FakeClock
	service  *airquality.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	upstream := newFakeUpstream()
	repo := airquality.NewInMemoryRepository(clock)
	logger := zerolog.New(io.Discard)

	ingester := airquality.NewIngester(airquality.IngesterConfig{
		Upstream: upstream,
		Logger:   logger,
		Clock:    clock,
		Pacer:    &countingPacer{},
	})

	return &serviceFixture{
		upstream: upstream,
		repo:     repo,
		clock:    clock,
		service: airquality.NewService(airquality.ServiceConfig{
			Fetcher:    ingester,
			Repository: repo,
			Logger:     logger,
			Clock:      clock,
		}),
	}
}

func TestService_Refresh_EndToEnd(t *testing.T) {
	f := newServiceFixture(t)
	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	ctx := context.Background()

	result, err := f.service.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsIngested)
	assert.Equal(t, 1, result.RecordsFetched)

	city, err := f.service.City(ctx, "lyon")
	require.NoError(t, err)
	assert.Equal(t, 33, city.AQI)
	assert.Equal(t, "Good", city.Category())
	assert.Nil(t, city.PM10)

	stats, err := f.service.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCities)
	assert.Equal(t, 1, stats.TotalCountries)
	assert.Equal(t, 1, stats.CitiesWithGoodAir)
	assert.Equal(t, 0, stats.CitiesWithModerateAir)
	assert.InDelta(t, 33.0, stats.AverageAQI, 0.0001)
	require.NotNil(t, stats.Cleanest)
	assert.Equal(t, "Lyon", stats.Cleanest.City)
	assert.Equal(t, "March 1, 2024, 12:00 PM UTC", stats.LastUpdated)
}

func TestService_Refresh_ZeroRecordsKeepsCache(t *testing.T) {
	f := newServiceFixture(t)
	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	ctx := context.Background()

	_, err := f.service.Refresh(ctx)
	require.NoError(t, err)

	before, err := f.service.GlobalStats(ctx)
	require.NoError(t, err)
	generation := f.service.Status().CacheGeneration

	f.upstream.reset()
	f.clock.Advance(time.Hour)

	result, err := f.service.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsIngested)

	after, err := f.service.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, "March 1, 2024, 12:00 PM UTC", after.LastUpdated)
	assert.Equal(t, generation, f.service.Status().CacheGeneration)
}

func TestService_Refresh_RecomputesAfterIngest(t *testing.T) {
	f := newServiceFixture(t)
	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	ctx := context.Background()

	_, err := f.service.Refresh(ctx)
	require.NoError(t, err)

	before, err := f.service.GlobalStats(ctx)
	require.NoError(t, err)
	countries, err := f.service.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"France"}, countries)

	f.upstream.addCity("2001", "Delhi", "India", 180.0)
	f.clock.Advance(time.Hour)

	result, err := f.service.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsIngested)

	after, err := f.service.GlobalStats(ctx)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, 2, after.TotalCities)
	assert.Equal(t, 1, after.CitiesWithUnhealthyAir)
	require.NotNil(t, after.MostPolluted)
	assert.Equal(t, "Delhi", after.MostPolluted.City)
	assert.Equal(t, "March 1, 2024, 1:00 PM UTC", after.LastUpdated)

	countries, err = f.service.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"France", "India"}, countries)
}

func TestService_Refresh_PersistenceFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := airquality.NewInMemoryRepository(clock)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, []*airquality.Record{testRecord("Lyon", "France", 33)})
	require.NoError(t, err)

	service := airquality.NewService(airquality.ServiceConfig{
		Fetcher: fetcherFunc(func(context.Context, int) []*airquality.Record {
			return []*airquality.Record{testRecord("Lyon", "France", 150)}
		}),
		Repository: failingRepository{Repository: repo},
		Logger:     zerolog.New(io.Discard),
		Clock:      clock,
	})

	before, err := service.GlobalStats(ctx)
	require.NoError(t, err)

	result, err := service.Refresh(ctx)
	require.ErrorIs(t, err, airquality.ErrPersistence)
	assert.Nil(t, result)

	after, err := service.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Same(t, before, after)

	city, err := service.City(ctx, "Lyon")
	require.NoError(t, err)
	assert.Equal(t, 33, city.AQI)

	status := service.Status()
	assert.Equal(t, uint64(0), status.CacheGeneration)
	assert.Contains(t, status.LastError, "connection reset")
	assert.Nil(t, status.LastRefresh)
}

func TestService_Refresh_RejectsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	service := airquality.NewService(airquality.ServiceConfig{
		Fetcher: fetcherFunc(func(context.Context, int) []*airquality.Record {
			close(started)
			<-release
			return nil
		}),
		Repository: airquality.NewInMemoryRepository(nil),
		Logger:     zerolog.New(io.Discard),
	})

	done := make(chan error, 1)
	go func() {
		_, err := service.Refresh(context.Background())
		done <- err
	}()
	<-started

	_, err := service.Refresh(context.Background())
	require.ErrorIs(t, err, airquality.ErrRefreshInProgress)
	assert.True(t, service.Status().Refreshing)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, service.Status().Refreshing)
}

func TestService_Refresh_IgnoresCallerCancellation(t *testing.T) {
	var sawCancelled bool
	service := airquality.NewService(airquality.ServiceConfig{
		Fetcher: fetcherFunc(func(ctx context.Context, _ int) []*airquality.Record {
			sawCancelled = ctx.Err() != nil
			return []*airquality.Record{testRecord("Lyon", "France", 33)}
		}),
		Repository: airquality.NewInMemoryRepository(nil),
		Logger:     zerolog.New(io.Discard),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, sawCancelled)
	assert.Equal(t, 1, result.RecordsIngested)
}

func TestService_Refresh_IsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	f.upstream.addCity("1002", "Paris", "France", 23.7)
	ctx := context.Background()

	first, err := f.service.Refresh(ctx)
	require.NoError(t, err)
	second, err := f.service.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.RecordsIngested, second.RecordsIngested)
	cities, err := f.service.Cities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 2)
}

func TestService_Reads(t *testing.T) {
	f := newServiceFixture(t)
	f.upstream.addCity("1", "Lyon", "France", 8.0)
	f.upstream.addCity("2", "Paris", "France", 23.7)
	f.upstream.addCity("3", "Delhi", "India", 180.0)
	f.upstream.addCity("4", "Lagos", "Nigeria", 60.0)
	f.upstream.addCity("5", "Oslo", "Norway", 2.0)
	ctx := context.Background()

	_, err := f.service.Refresh(ctx)
	require.NoError(t, err)

	_, err = f.service.City(ctx, "Atlantis")
	assert.ErrorIs(t, err, airquality.ErrCityNotFound)

	_, err = f.service.City(ctx, " ")
	assert.ErrorIs(t, err, airquality.ErrCityNotFound)

	_, err = f.service.CountryCities(ctx, "Spain")
	assert.ErrorIs(t, err, airquality.ErrCountryNotFound)

	france, err := f.service.CountryCities(ctx, "france")
	require.NoError(t, err)
	require.Len(t, france, 2)
	assert.Equal(t, "Lyon", france[0].City)

	good, err := f.service.GoodAir(ctx)
	require.NoError(t, err)
	require.Len(t, good, 2)
	assert.Equal(t, "Oslo", good[0].City)
	assert.Equal(t, "Lyon", good[1].City)

	unhealthy, err := f.service.UnhealthyAir(ctx)
	require.NoError(t, err)
	require.Len(t, unhealthy, 2)
	assert.Equal(t, "Delhi", unhealthy[0].City)
	assert.Equal(t, "Lagos", unhealthy[1].City)

	polluted, err := f.service.MostPolluted(ctx, 2)
	require.NoError(t, err)
	require.Len(t, polluted, 2)
	assert.Equal(t, "Delhi", polluted[0].City)

	cleanest, err := f.service.Cleanest(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cleanest, 5)
	assert.Equal(t, "Oslo", cleanest[0].City)
}

func TestService_Empty(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	empty, err := f.service.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	_, err = f.service.Refresh(ctx)
	require.NoError(t, err)

	empty, err = f.service.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestService_InvalidateCache_PicksUpExternalWrites(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.upstream.addCity("1001", "Lyon", "France", 8.0)
	_, err := f.service.Refresh(ctx)
	require.NoError(t, err)

	cities, err := f.service.Cities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 1)
	tag := f.service.CacheTag()

	// Another process writes straight to the shared store.
	_, err = f.repo.Upsert(ctx, []*airquality.Record{{
		City: "Oslo", Country: "Norway", AQI: 12, Latitude: ptr(59.91), Longitude: ptr(10.75),
	}})
	require.NoError(t, err)

	cities, err = f.service.Cities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 1, "cached view until invalidated")
	assert.Equal(t, tag, f.service.CacheTag())

	f.service.InvalidateCache()

	cities, err = f.service.Cities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 2)
	assert.NotEqual(t, tag, f.service.CacheTag())
}
