// Package airquality ingests upstream sensor readings, scores them on the AQI
// scale and serves cached city and country aggregates.
package airquality

import (
	"errors"
	"strings"
	"time"

	"github.com/aqtracker/aqtracker/internal/aqi"
)

// Unknown is the placeholder upstream location names resolve to when the
// provider gives no city or country. Records carrying it are never stored.
const Unknown = "Unknown"

// Upstream errors. These are recovered inside an ingestion run.
var (
	ErrUpstreamUnavailable = errors.New("air quality provider unavailable")
	ErrUpstreamMalformed   = errors.New("malformed air quality provider response")
	ErrLocationNotFound    = errors.New("location not found")
)

// Store and lookup errors.
var (
	ErrPersistence       = errors.New("persisting air quality records failed")
	ErrInvalidRecord     = errors.New("invalid air quality record")
	ErrCityNotFound      = errors.New("city not found")
	ErrCountryNotFound   = errors.New("country not found")
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// Pollutant names a measured parameter.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
	PollutantO3   Pollutant = "o3"
	PollutantCO   Pollutant = "co"
	PollutantSO2  Pollutant = "so2"
)

// ParsePollutant matches an upstream parameter name case-insensitively.
// It returns false for parameters the tracker does not store.
func ParsePollutant(name string) (Pollutant, bool) {
	switch p := Pollutant(strings.ToLower(strings.TrimSpace(name))); p {
	case PollutantPM25, PollutantPM10, PollutantNO2, PollutantO3, PollutantCO, PollutantSO2:
		return p, true
	default:
		return "", false
	}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// SensorReading is the most recent value reported by one sensor.
type SensorReading struct {
	SensorID int64

	// Value is nil when the provider reported no usable number.
	Value *float64
}

// LocationMetadata describes a monitoring location as reported upstream.
type LocationMetadata struct {
	CityName    string
	CountryName string
	Coordinates *Coordinates

	// SensorParameters maps a sensor id to the parameter it measures.
	SensorParameters map[int64]string

	// LastUpdated is the provider's last measurement time; zero if unknown.
	LastUpdated time.Time
}

// Record is the canonical, storage-ready state of one monitored city.
type Record struct {
	City       string
	Country    string
	LocationID string

	// AQI is derived from PM2.5 and PM10 during normalization.
	AQI int

	PM25 *float64
	PM10 *float64
	NO2  *float64
	O3   *float64
	CO   *float64
	SO2  *float64

	Latitude  *float64
	Longitude *float64

	LastUpdated time.Time
}

// Key is the case-normalized storage identity of a record.
type Key struct {
	City    string
	Country string
}

// Key returns the record's storage identity.
func (r *Record) Key() Key {
	return Key{
		City:    strings.ToLower(strings.TrimSpace(r.City)),
		Country: strings.ToLower(strings.TrimSpace(r.Country)),
	}
}

// IsValid reports whether the record may enter the store.
func (r *Record) IsValid() bool {
	return validName(r.City) && validName(r.Country) && r.AQI > 0
}

// Category returns the AQI category label.
func (r *Record) Category() string {
	return aqi.Category(r.AQI)
}

// Color returns the AQI display colour.
func (r *Record) Color() string {
	return aqi.Color(r.AQI)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.PM25 = cloneFloat(r.PM25)
	c.PM10 = cloneFloat(r.PM10)
	c.NO2 = cloneFloat(r.NO2)
	c.O3 = cloneFloat(r.O3)
	c.CO = cloneFloat(r.CO)
	c.SO2 = cloneFloat(r.SO2)
	c.Latitude = cloneFloat(r.Latitude)
	c.Longitude = cloneFloat(r.Longitude)
	return &c
}

// setPollutant stores value in the field for p.
func (r *Record) setPollutant(p Pollutant, value float64) {
	v := value
	switch p {
	case PollutantPM25:
		r.PM25 = &v
	case PollutantPM10:
		r.PM10 = &v
	case PollutantNO2:
		r.NO2 = &v
	case PollutantO3:
		r.O3 = &v
	case PollutantCO:
		r.CO = &v
	case PollutantSO2:
		r.SO2 = &v
	}
}

// GlobalStats aggregates the whole store.
type GlobalStats struct {
	TotalCities    int
	TotalCountries int
	AverageAQI     float64

	CitiesWithGoodAir      int // AQI 0-50
	CitiesWithModerateAir  int // AQI 51-100
	CitiesWithUnhealthyAir int // AQI 101-500

	Cleanest     *Extreme
	MostPolluted *Extreme

	LastUpdated string
}

// Extreme identifies the city at one end of the AQI range.
type Extreme struct {
	City    string
	Country string
	AQI     int
}

// RefreshResult summarises one ingestion run.
type RefreshResult struct {
	RecordsIngested int
	RecordsFetched  int
	StartedAt       time.Time
	Duration        time.Duration
}

func validName(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != Unknown
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
