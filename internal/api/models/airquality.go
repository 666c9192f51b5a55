package models

// CityAirQuality is the current air quality of one city.
type CityAirQuality struct {
	City       string   `json:"city"`
	Country    string   `json:"country"`
	LocationID string   `json:"locationId,omitempty"`
	AQI        int      `json:"aqi"`
	Category   string   `json:"category"`
	Color      string   `json:"color"`
	PM25       *float64 `json:"pm25,omitempty"`
	PM10       *float64 `json:"pm10,omitempty"`
	NO2        *float64 `json:"no2,omitempty"`
	O3         *float64 `json:"o3,omitempty"`
	CO         *float64 `json:"co,omitempty"`
	SO2        *float64 `json:"so2,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`

	LastUpdated Timestamp `json:"lastUpdated"`
}

// GlobalStats is the aggregate view over every monitored city.
type GlobalStats struct {
	TotalCities            int     `json:"totalCities"`
	TotalCountries         int     `json:"totalCountries"`
	AverageGlobalAQI       float64 `json:"averageGlobalAqi"`
	CitiesWithGoodAir      int     `json:"citiesWithGoodAir"`
	CitiesWithModerateAir  int     `json:"citiesWithModerateAir"`
	CitiesWithUnhealthyAir int     `json:"citiesWithUnhealthyAir"`

	CleanestCity        *string `json:"cleanestCity"`
	CleanestCountry     *string `json:"cleanestCountry"`
	CleanestAQI         *int    `json:"cleanestAqi"`
	MostPollutedCity    *string `json:"mostPollutedCity"`
	MostPollutedCountry *string `json:"mostPollutedCountry"`
	MostPollutedAQI     *int    `json:"mostPollutedAqi"`

	LastUpdated string `json:"lastUpdated"`
}

// RefreshResponse reports the outcome of a manual refresh.
type RefreshResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	RecordsIngested int    `json:"recordsIngested"`
	RecordsFetched  int    `json:"recordsFetched"`
	Duration        string `json:"duration"`
}

// Estimate is the air quality estimated at a point.
type Estimate struct {
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	AQI           int            `json:"aqi"`
	Category      string         `json:"category"`
	PM25          *float64       `json:"pm25,omitempty"`
	PM10          *float64       `json:"pm10,omitempty"`
	Confidence    Confidence     `json:"confidence"`
	NearestCity   string         `json:"nearestCity"`
	NearestMeters float64        `json:"nearestMeters"`
	Contributions []Contribution `json:"contributions"`
}

// Contribution is one city's share in an estimate.
type Contribution struct {
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Distance float64 `json:"distanceMeters"`
	AQI      int     `json:"aqi"`
	Weight   float64 `json:"weight"`
}
