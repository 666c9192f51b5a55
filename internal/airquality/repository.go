package airquality

import "context"

// Repository is the keyed upsert store for air quality records.
//
// Records are keyed by the case-normalized (city, country) pair. Reads that
// return several records order them by city name unless stated otherwise.
type Repository interface {
	// Upsert inserts or replaces every record as one all-or-nothing unit and
	// returns the number of rows inserted or updated. On error the store is
	// left as it was before the call.
	Upsert(ctx context.Context, records []*Record) (int, error)

	// FindAll returns every stored record.
	FindAll(ctx context.Context) ([]*Record, error)

	// FindByCity returns the record for a city, matched case-insensitively.
	// It returns ErrCityNotFound if no record matches.
	FindByCity(ctx context.Context, city string) (*Record, error)

	// FindByCountry returns the records of a country, matched case-insensitively.
	FindByCountry(ctx context.Context, country string) ([]*Record, error)

	// FindAllCountries returns the distinct country names in alphabetical order.
	FindAllCountries(ctx context.Context) ([]string, error)

	// FindByAQIRange returns records with low <= AQI <= high.
	FindByAQIRange(ctx context.Context, low, high int) ([]*Record, error)

	// FindCleanest returns up to limit records with AQI > 0, lowest AQI first.
	FindCleanest(ctx context.Context, limit int) ([]*Record, error)

	// FindMostPolluted returns up to limit records, highest AQI first.
	FindMostPolluted(ctx context.Context, limit int) ([]*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// CountDistinctCountries returns the number of distinct countries.
	CountDistinctCountries(ctx context.Context) (int, error)

	// CountByAQIRange returns the number of records with low <= AQI <= high.
	CountByAQIRange(ctx context.Context, low, high int) (int, error)

	// AverageAQI returns the mean AQI, or nil when the store is empty.
	AverageAQI(ctx context.Context) (*float64, error)
}
