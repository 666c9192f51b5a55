package airquality

import (
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/aqi"
)

// Normalizer turns one location's metadata and readings into a Record.
type Normalizer struct {
	logger zerolog.Logger
	clock  clockwork.Clock
}

// NewNormalizer creates a Normalizer. A nil clock uses the real clock.
func NewNormalizer(logger zerolog.Logger, clock clockwork.Clock) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{logger: logger, clock: clock}
}

// Normalize builds a Record for locationID. It returns nil when the result
// is not eligible for storage (unknown city or country, or an AQI of 0).
//
// Readings whose sensor is not in the metadata, whose parameter is not a
// tracked pollutant, or whose value is missing or negative are skipped.
func (n *Normalizer) Normalize(locationID string, meta *LocationMetadata, readings []SensorReading) *Record {
	if meta == nil {
		return nil
	}

	record := &Record{
		City:        meta.CityName,
		Country:     meta.CountryName,
		LocationID:  locationID,
		LastUpdated: meta.LastUpdated,
	}
	if record.LastUpdated.IsZero() {
		record.LastUpdated = n.clock.Now().UTC()
	}
	if meta.Coordinates != nil {
		lat, lon := meta.Coordinates.Latitude, meta.Coordinates.Longitude
		record.Latitude = &lat
		record.Longitude = &lon
	}

	for _, reading := range readings {
		name, ok := meta.SensorParameters[reading.SensorID]
		if !ok {
			continue
		}
		pollutant, ok := ParsePollutant(name)
		if !ok {
			continue
		}
		if reading.Value == nil || math.IsNaN(*reading.Value) || math.IsInf(*reading.Value, 0) || *reading.Value < 0 {
			n.logger.Debug().
				Str("location_id", locationID).
				Int64("sensor_id", reading.SensorID).
				Str("parameter", name).
				Msg("skipping malformed reading")
			continue
		}
		record.setPollutant(pollutant, *reading.Value)
	}

	record.AQI = aqi.CombinedIndex(record.PM25, record.PM10)

	if !record.IsValid() {
		n.logger.Debug().
			Str("location_id", locationID).
			Str("city", record.City).
			Str("country", record.Country).
			Int("aqi", record.AQI).
			Msg("discarding ineligible location")
		return nil
	}

	return record
}
