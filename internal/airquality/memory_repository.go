package airquality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Upserts are applied to a copy that replaces the live map on success.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[Key]*Record
	clock   clockwork.Clock
}

// NewInMemoryRepository creates a new in-memory repository.
// A nil clock uses the real clock.
func NewInMemoryRepository(clock clockwork.Clock) *InMemoryRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryRepository{
		records: make(map[Key]*Record),
		clock:   clock,
	}
}

// Upsert inserts or replaces the records atomically.
func (r *InMemoryRepository) Upsert(_ context.Context, records []*Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[Key]*Record, len(r.records)+len(records))
	for k, v := range r.records {
		next[k] = v
	}

	now := r.clock.Now().UTC()
	for i, record := range records {
		if record == nil || !record.IsValid() {
			return 0, fmt.Errorf("record %d: %w", i, ErrInvalidRecord)
		}
		stored := record.Clone()
		stored.City = strings.TrimSpace(stored.City)
		stored.Country = strings.TrimSpace(stored.Country)
		if stored.LastUpdated.IsZero() {
			stored.LastUpdated = now
		}
		next[stored.Key()] = stored
	}

	r.records = next
	return len(records), nil
}

// FindAll returns every stored record ordered by city.
func (r *InMemoryRepository) FindAll(_ context.Context) ([]*Record, error) {
	return r.filter(func(*Record) bool { return true }), nil
}

// FindByCity returns the first record for city in country order.
func (r *InMemoryRepository) FindByCity(_ context.Context, city string) (*Record, error) {
	city = normalizeName(city)
	matches := r.filter(func(rec *Record) bool { return normalizeName(rec.City) == city })
	if len(matches) == 0 {
		return nil, ErrCityNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return normalizeName(matches[i].Country) < normalizeName(matches[j].Country)
	})
	return matches[0], nil
}

// FindByCountry returns the records of a country ordered by city.
func (r *InMemoryRepository) FindByCountry(_ context.Context, country string) ([]*Record, error) {
	country = normalizeName(country)
	return r.filter(func(rec *Record) bool { return normalizeName(rec.Country) == country }), nil
}

// FindAllCountries returns the distinct country names in alphabetical order.
func (r *InMemoryRepository) FindAllCountries(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]string)
	for _, rec := range r.records {
		key := normalizeName(rec.Country)
		if _, ok := seen[key]; !ok {
			seen[key] = rec.Country
		}
	}

	countries := make([]string, 0, len(seen))
	for _, name := range seen {
		countries = append(countries, name)
	}
	sort.Slice(countries, func(i, j int) bool {
		return normalizeName(countries[i]) < normalizeName(countries[j])
	})
	return countries, nil
}

// FindByAQIRange returns records with low <= AQI <= high ordered by city.
func (r *InMemoryRepository) FindByAQIRange(_ context.Context, low, high int) ([]*Record, error) {
	return r.filter(func(rec *Record) bool { return rec.AQI >= low && rec.AQI <= high }), nil
}

// FindCleanest returns up to limit records with the lowest positive AQI.
func (r *InMemoryRepository) FindCleanest(_ context.Context, limit int) ([]*Record, error) {
	records := r.filter(func(rec *Record) bool { return rec.AQI > 0 })
	sort.SliceStable(records, func(i, j int) bool { return records[i].AQI < records[j].AQI })
	return truncate(records, limit), nil
}

// FindMostPolluted returns up to limit records with the highest AQI.
func (r *InMemoryRepository) FindMostPolluted(_ context.Context, limit int) ([]*Record, error) {
	records := r.filter(func(*Record) bool { return true })
	sort.SliceStable(records, func(i, j int) bool { return records[i].AQI > records[j].AQI })
	return truncate(records, limit), nil
}

// Count returns the number of stored records.
func (r *InMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// CountDistinctCountries returns the number of distinct countries.
func (r *InMemoryRepository) CountDistinctCountries(ctx context.Context) (int, error) {
	countries, err := r.FindAllCountries(ctx)
	if err != nil {
		return 0, err
	}
	return len(countries), nil
}

// CountByAQIRange returns the number of records with low <= AQI <= high.
func (r *InMemoryRepository) CountByAQIRange(ctx context.Context, low, high int) (int, error) {
	records, err := r.FindByAQIRange(ctx, low, high)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// AverageAQI returns the mean AQI, or nil when empty.
func (r *InMemoryRepository) AverageAQI(_ context.Context) (*float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.records) == 0 {
		return nil, nil
	}
	total := 0
	for _, rec := range r.records {
		total += rec.AQI
	}
	avg := float64(total) / float64(len(r.records))
	return &avg, nil
}

// filter returns clones of the matching records ordered by city, then country.
func (r *InMemoryRepository) filter(match func(*Record) bool) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.City != kj.City {
			return ki.City < kj.City
		}
		return ki.Country < kj.Country
	})
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func truncate(records []*Record, limit int) []*Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
