package aqi

// Category labels for index ranges.
const (
	CategoryGood               = "Good"
	CategoryModerate           = "Moderate"
	CategoryUnhealthySensitive = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          = "Unhealthy"
	CategoryVeryUnhealthy      = "Very Unhealthy"
	CategoryHazardous          = "Hazardous"
)

// Category returns the EPA label for an index value.
func Category(index int) string {
	switch {
	case index <= 50:
		return CategoryGood
	case index <= 100:
		return CategoryModerate
	case index <= 150:
		return CategoryUnhealthySensitive
	case index <= 200:
		return CategoryUnhealthy
	case index <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// Color returns the EPA display colour for an index value.
func Color(index int) string {
	switch {
	case index <= 50:
		return "#00E400"
	case index <= 100:
		return "#FFFF00"
	case index <= 150:
		return "#FF7E00"
	case index <= 200:
		return "#FF0000"
	case index <= 300:
		return "#8F3F97"
	default:
		return "#7E0023"
	}
}
