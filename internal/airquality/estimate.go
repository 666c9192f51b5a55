package airquality

import (
	"errors"
	"math"
	"sort"

	"github.com/aqtracker/aqtracker/internal/aqi"
)

// Estimation errors.
var (
	ErrNoCitiesInRange = errors.New("no monitored cities within range")
	ErrInvalidPosition = errors.New("invalid coordinates")
)

// Confidence represents the confidence level of an estimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// EstimatorConfig holds configuration for point estimates.
type EstimatorConfig struct {
	// MaxDistance is the search radius in meters. Default: 100000 (100km).
	MaxDistance float64

	// MaxCities is the number of nearest cities used. Default: 5.
	MaxCities int

	// Power is the inverse distance weighting exponent. Default: 2.0.
	Power float64

	// HighConfidenceMaxDistance is the nearest-city distance for HIGH. Default: 10000.
	HighConfidenceMaxDistance float64

	// MediumConfidenceMaxDistance is the nearest-city distance for MEDIUM. Default: 40000.
	MediumConfidenceMaxDistance float64
}

// DefaultEstimatorConfig returns the default configuration.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MaxDistance:                 100000,
		MaxCities:                   5,
		Power:                       2.0,
		HighConfidenceMaxDistance:   10000,
		MediumConfidenceMaxDistance: 40000,
	}
}

// Estimate is the air quality estimated at an arbitrary point from the
// nearest monitored cities.
type Estimate struct {
	Latitude  float64
	Longitude float64

	// PM25 and PM10 are weighted averages over the cities reporting them.
	PM25 *float64
	PM10 *float64

	// AQI is recomputed from the estimated concentrations.
	AQI int

	Confidence    Confidence
	NearestCity   string
	NearestMeters float64
	Contributions []Contribution
}

// Contribution describes one city's share of an estimate.
type Contribution struct {
	City     string
	Country  string
	Distance float64 // meters
	AQI      int
	Weight   float64 // normalized, 0-1
}

// Estimator performs inverse distance weighting over stored records.
type Estimator struct {
	config EstimatorConfig
}

// NewEstimator creates an Estimator, filling unset fields with defaults.
func NewEstimator(config EstimatorConfig) *Estimator {
	def := DefaultEstimatorConfig()
	if config.MaxDistance <= 0 {
		config.MaxDistance = def.MaxDistance
	}
	if config.MaxCities <= 0 {
		config.MaxCities = def.MaxCities
	}
	if config.Power <= 0 {
		config.Power = def.Power
	}
	if config.HighConfidenceMaxDistance <= 0 {
		config.HighConfidenceMaxDistance = def.HighConfidenceMaxDistance
	}
	if config.MediumConfidenceMaxDistance <= 0 {
		config.MediumConfidenceMaxDistance = def.MediumConfidenceMaxDistance
	}
	return &Estimator{config: config}
}

type cityDistance struct {
	record   *Record
	distance float64
	weight   float64
}

// Estimate computes the estimate at (lat, lon) from records that carry
// coordinates.
func (e *Estimator) Estimate(lat, lon float64, records []*Record) (*Estimate, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidPosition
	}

	var near []cityDistance
	for _, rec := range records {
		if rec.Latitude == nil || rec.Longitude == nil {
			continue
		}
		dist := haversineDistance(lat, lon, *rec.Latitude, *rec.Longitude)
		if dist <= e.config.MaxDistance {
			near = append(near, cityDistance{record: rec, distance: dist})
		}
	}
	if len(near) == 0 {
		return nil, ErrNoCitiesInRange
	}

	sort.Slice(near, func(a, b int) bool { return near[a].distance < near[b].distance })
	if len(near) > e.config.MaxCities {
		near = near[:e.config.MaxCities]
	}

	for i := range near {
		if near[i].distance < 1 {
			near[i].weight = 1e10
		} else {
			near[i].weight = 1.0 / math.Pow(near[i].distance, e.config.Power)
		}
	}

	est := &Estimate{
		Latitude:      lat,
		Longitude:     lon,
		PM25:          weightedAverage(near, func(r *Record) *float64 { return r.PM25 }),
		PM10:          weightedAverage(near, func(r *Record) *float64 { return r.PM10 }),
		NearestCity:   near[0].record.City,
		NearestMeters: near[0].distance,
		Confidence:    e.confidence(near[0].distance, len(near)),
	}
	est.AQI = aqi.CombinedIndex(est.PM25, est.PM10)

	var total float64
	for _, cd := range near {
		total += cd.weight
	}
	est.Contributions = make([]Contribution, 0, len(near))
	for _, cd := range near {
		est.Contributions = append(est.Contributions, Contribution{
			City:     cd.record.City,
			Country:  cd.record.Country,
			Distance: cd.distance,
			AQI:      cd.record.AQI,
			Weight:   cd.weight / total,
		})
	}

	return est, nil
}

// weightedAverage averages field over the cities that report it.
func weightedAverage(near []cityDistance, field func(*Record) *float64) *float64 {
	var sum, weights float64
	for _, cd := range near {
		v := field(cd.record)
		if v == nil {
			continue
		}
		sum += *v * cd.weight
		weights += cd.weight
	}
	if weights == 0 {
		return nil
	}
	avg := sum / weights
	return &avg
}

func (e *Estimator) confidence(nearestDistance float64, cityCount int) Confidence {
	if nearestDistance <= e.config.HighConfidenceMaxDistance && cityCount >= 2 {
		return ConfidenceHigh
	}
	if nearestDistance <= e.config.MediumConfidenceMaxDistance {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// haversineDistance returns the great-circle distance in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
