package airquality

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `city, country, location_id, aqi, pm25, pm10, no2, o3, co, so2,
	latitude, longitude, last_updated`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL air quality repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert inserts or updates all records in one transaction. When any row
// changed, a notification on RefreshChannel is delivered at commit.
func (r *PostgresRepository) Upsert(ctx context.Context, records []*Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i, record := range records {
		if record == nil || !record.IsValid() {
			return 0, fmt.Errorf("record %d: %w", i, ErrInvalidRecord)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	query := `
		INSERT INTO air_quality_records (` + recordColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, now()), now())
		ON CONFLICT ((lower(city)), (lower(country))) DO UPDATE SET
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			location_id = EXCLUDED.location_id,
			aqi = EXCLUDED.aqi,
			pm25 = EXCLUDED.pm25,
			pm10 = EXCLUDED.pm10,
			no2 = EXCLUDED.no2,
			o3 = EXCLUDED.o3,
			co = EXCLUDED.co,
			so2 = EXCLUDED.so2,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			last_updated = EXCLUDED.last_updated,
			updated_at = EXCLUDED.updated_at
	`

	affected := 0
	for _, rec := range records {
		tag, err := tx.Exec(ctx, query, upsertArgs(rec)...)
		if err != nil {
			return 0, fmt.Errorf("upsert %s/%s: %w", rec.City, rec.Country, err)
		}
		affected += int(tag.RowsAffected())
	}

	if affected > 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, RefreshChannel, strconv.Itoa(affected)); err != nil {
			return 0, fmt.Errorf("notify %s: %w", RefreshChannel, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return affected, nil
}

// FindAll returns every stored record ordered by city.
func (r *PostgresRepository) FindAll(ctx context.Context) ([]*Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM air_quality_records ORDER BY lower(city), lower(country)`)
}

// FindByCity returns the record for city, matched case-insensitively.
func (r *PostgresRepository) FindByCity(ctx context.Context, city string) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM air_quality_records
		WHERE lower(city) = lower($1)
		ORDER BY lower(country)
		LIMIT 1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, city))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindByCountry returns the records of country ordered by city.
func (r *PostgresRepository) FindByCountry(ctx context.Context, country string) ([]*Record, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM air_quality_records
		WHERE lower(country) = lower($1)
		ORDER BY lower(city)
	`, country)
}

// FindAllCountries returns the distinct country names in alphabetical order.
func (r *PostgresRepository) FindAllCountries(ctx context.Context) ([]string, error) {
	query := `
		SELECT min(country)
		FROM air_quality_records
		GROUP BY lower(country)
		ORDER BY lower(country)
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, err
		}
		countries = append(countries, country)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return countries, nil
}

// FindByAQIRange returns records with low <= AQI <= high ordered by city.
func (r *PostgresRepository) FindByAQIRange(ctx context.Context, low, high int) ([]*Record, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM air_quality_records
		WHERE aqi BETWEEN $1 AND $2
		ORDER BY lower(city), lower(country)
	`, low, high)
}

// FindCleanest returns up to limit records with the lowest positive AQI.
func (r *PostgresRepository) FindCleanest(ctx context.Context, limit int) ([]*Record, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM air_quality_records
		WHERE aqi > 0
		ORDER BY aqi ASC, lower(city), lower(country)
		LIMIT $1
	`, limit)
}

// FindMostPolluted returns up to limit records with the highest AQI.
func (r *PostgresRepository) FindMostPolluted(ctx context.Context, limit int) ([]*Record, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM air_quality_records
		ORDER BY aqi DESC, lower(city), lower(country)
		LIMIT $1
	`, limit)
}

// Count returns the number of stored records.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM air_quality_records`).Scan(&n)
	return n, err
}

// CountDistinctCountries returns the number of distinct countries.
func (r *PostgresRepository) CountDistinctCountries(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(DISTINCT lower(country)) FROM air_quality_records`).Scan(&n)
	return n, err
}

// CountByAQIRange returns the number of records with low <= AQI <= high.
func (r *PostgresRepository) CountByAQIRange(ctx context.Context, low, high int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM air_quality_records WHERE aqi BETWEEN $1 AND $2`, low, high,
	).Scan(&n)
	return n, err
}

// AverageAQI returns the mean AQI, or nil when the table is empty.
func (r *PostgresRepository) AverageAQI(ctx context.Context) (*float64, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx, `SELECT avg(aqi)::float8 FROM air_quality_records`).Scan(&avg)
	return avg, err
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec        Record
		locationID *string
	)

	err := row.Scan(
		&rec.City,
		&rec.Country,
		&locationID,
		&rec.AQI,
		&rec.PM25,
		&rec.PM10,
		&rec.NO2,
		&rec.O3,
		&rec.CO,
		&rec.SO2,
		&rec.Latitude,
		&rec.Longitude,
		&rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if locationID != nil {
		rec.LocationID = *locationID
	}
	rec.LastUpdated = rec.LastUpdated.UTC()
	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

// upsertArgs binds rec to the upsert statement. City and country are
// trimmed the same way InMemoryRepository stores them.
func upsertArgs(rec *Record) []any {
	var lastUpdated *time.Time
	if !rec.LastUpdated.IsZero() {
		ts := rec.LastUpdated.UTC()
		lastUpdated = &ts
	}
	return []any{
		strings.TrimSpace(rec.City), strings.TrimSpace(rec.Country), nullString(rec.LocationID), rec.AQI,
		rec.PM25, rec.PM10, rec.NO2, rec.O3, rec.CO, rec.SO2,
		rec.Latitude, rec.Longitude, lastUpdated,
	}
}
