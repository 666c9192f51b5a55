package handler

import (
	"github.com/aqtracker/aqtracker/internal/advisory"
	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/api/models"
	"github.com/aqtracker/aqtracker/internal/aqi"
)

func cityFromRecord(r *airquality.Record) models.CityAirQuality {
	return models.CityAirQuality{
		City:        r.City,
		Country:     r.Country,
		LocationID:  r.LocationID,
		AQI:         r.AQI,
		Category:    r.Category(),
		Color:       r.Color(),
		PM25:        r.PM25,
		PM10:        r.PM10,
		NO2:         r.NO2,
		O3:          r.O3,
		CO:          r.CO,
		SO2:         r.SO2,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		LastUpdated: models.Timestamp(r.LastUpdated),
	}
}

func citiesFromRecords(records []*airquality.Record) []models.CityAirQuality {
	out := make([]models.CityAirQuality, 0, len(records))
	for _, r := range records {
		out = append(out, cityFromRecord(r))
	}
	return out
}

func statsFromDomain(s *airquality.GlobalStats) models.GlobalStats {
	out := models.GlobalStats{
		TotalCities:            s.TotalCities,
		TotalCountries:         s.TotalCountries,
		AverageGlobalAQI:       s.AverageAQI,
		CitiesWithGoodAir:      s.CitiesWithGoodAir,
		CitiesWithModerateAir:  s.CitiesWithModerateAir,
		CitiesWithUnhealthyAir: s.CitiesWithUnhealthyAir,
		LastUpdated:            s.LastUpdated,
	}
	if c := s.Cleanest; c != nil {
		out.CleanestCity, out.CleanestCountry, out.CleanestAQI = &c.City, &c.Country, &c.AQI
	}
	if p := s.MostPolluted; p != nil {
		out.MostPollutedCity, out.MostPollutedCountry, out.MostPollutedAQI = &p.City, &p.Country, &p.AQI
	}
	return out
}

func estimateFromDomain(e *airquality.Estimate) models.Estimate {
	out := models.Estimate{
		Latitude:      e.Latitude,
		Longitude:     e.Longitude,
		AQI:           e.AQI,
		Category:      aqi.Category(e.AQI),
		PM25:          e.PM25,
		PM10:          e.PM10,
		Confidence:    models.Confidence(e.Confidence),
		NearestCity:   e.NearestCity,
		NearestMeters: e.NearestMeters,
		Contributions: make([]models.Contribution, 0, len(e.Contributions)),
	}
	for _, c := range e.Contributions {
		out.Contributions = append(out.Contributions, models.Contribution{
			City:     c.City,
			Country:  c.Country,
			Distance: c.Distance,
			AQI:      c.AQI,
			Weight:   c.Weight,
		})
	}
	return out
}

func recommendationFromDomain(r *advisory.Recommendation) models.Recommendation {
	out := models.Recommendation{
		City:              r.City,
		Country:           r.Country,
		AQI:               r.AQI,
		AQICategory:       r.Category,
		OverallAssessment: r.Assessment,
		Recommendations:   make([]models.RecommendationCard, 0, len(r.Cards)),
		GeneratedAt:       r.GeneratedAt,
		Source:            r.Source,
	}
	for _, c := range r.Cards {
		out.Recommendations = append(out.Recommendations, models.RecommendationCard{
			Title:       c.Title,
			Description: c.Description,
			Icon:        c.Icon,
			Severity:    c.Severity,
		})
	}
	return out
}
