package airquality_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aqtracker/aqtracker/internal/airquality"
)

var errBoom = errors.New("boom")

// fakeLocation is one upstream location served by fakeUpstream.
type fakeLocation struct {
	readings    []airquality.SensorReading
	meta        *airquality.LocationMetadata
	readingsErr error
	metaErr     error
	panics      bool
}

// fakeUpstream serves a fixed set of locations in id order.
type fakeUpstream struct {
	mu        sync.Mutex
	ids       []string
	locations map[string]fakeLocation

	listLimit     atomic.Int32
	listCalls     atomic.Int32
	readingsCalls atomic.Int32
	metaCalls     atomic.Int32
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{locations: make(map[string]fakeLocation)}
}

func (f *fakeUpstream) add(id string, loc fakeLocation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.locations[id] = loc
}

// addCity registers a location with a single PM2.5 sensor.
func (f *fakeUpstream) addCity(id, city, country string, pm25 float64) {
	f.add(id, fakeLocation{
		readings: []airquality.SensorReading{{SensorID: 1, Value: ptr(pm25)}},
		meta: &airquality.LocationMetadata{
			CityName:         city,
			CountryName:      country,
			SensorParameters: map[int64]string{1: "pm25"},
		},
	})
}

func (f *fakeUpstream) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
	f.locations = make(map[string]fakeLocation)
}

func (f *fakeUpstream) ListLocationIDs(_ context.Context, limit int) []string {
	f.listCalls.Add(1)
	f.listLimit.Store(int32(limit))
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.ids))
	for _, id := range f.ids {
		if len(ids) == limit {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeUpstream) FetchLatestReadings(_ context.Context, id string) ([]airquality.SensorReading, error) {
	f.readingsCalls.Add(1)
	f.mu.Lock()
	loc, ok := f.locations[id]
	f.mu.Unlock()
	if !ok {
		return nil, airquality.ErrLocationNotFound
	}
	if loc.panics {
		panic("decoder exploded")
	}
	if loc.readingsErr != nil {
		return nil, loc.readingsErr
	}
	return loc.readings, nil
}

func (f *fakeUpstream) FetchLocationMetadata(_ context.Context, id string) (*airquality.LocationMetadata, error) {
	f.metaCalls.Add(1)
	f.mu.Lock()
	loc, ok := f.locations[id]
	f.mu.Unlock()
	if !ok {
		return nil, airquality.ErrLocationNotFound
	}
	if loc.metaErr != nil {
		return nil, loc.metaErr
	}
	return loc.meta, nil
}

// countingPacer records Wait calls without sleeping.
type countingPacer struct {
	waits atomic.Int32
	err   error
}

func (p *countingPacer) Wait(_ context.Context) error {
	p.waits.Add(1)
	return p.err
}

func ptr(v float64) *float64 {
	return &v
}
