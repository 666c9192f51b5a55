package models

// Recommendation is the advice generated for a city.
type Recommendation struct {
	City              string               `json:"city"`
	Country           string               `json:"country"`
	AQI               int                  `json:"aqi"`
	AQICategory       string               `json:"aqiCategory"`
	OverallAssessment string               `json:"overallAssessment"`
	Recommendations   []RecommendationCard `json:"recommendations"`
	GeneratedAt       string               `json:"generatedAt"`
	Source            string               `json:"source"`
}

// RecommendationCard is a single actionable recommendation.
type RecommendationCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Severity    string `json:"severity"`
}

// HealthAdvisory is a short advisory for an AQI value.
type HealthAdvisory struct {
	AQI      int    `json:"aqi"`
	Category string `json:"category"`
	Advisory string `json:"advisory"`
}

// Analysis is a narrative about a city's air quality.
type Analysis struct {
	City     string `json:"city"`
	Analysis string `json:"analysis"`
}
