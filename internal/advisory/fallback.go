package advisory

import "fmt"

func fallbackAssessment(city string, aqiValue int) string {
	switch {
	case aqiValue <= 50:
		return fmt.Sprintf("Air quality in %s is good. Enjoy outdoor activities!", city)
	case aqiValue <= 100:
		return fmt.Sprintf("Air quality in %s is moderate. Generally acceptable for most people.", city)
	case aqiValue <= 150:
		return fmt.Sprintf("Air quality in %s is unhealthy for sensitive groups. Limit outdoor exposure.", city)
	default:
		return fmt.Sprintf("Air quality in %s is unhealthy. Reduce prolonged outdoor activities.", city)
	}
}

func fallbackCards(aqiValue int) []Card {
	switch {
	case aqiValue <= 50:
		return []Card{
			{"Outdoor Exercise", "Great day for outdoor activities like jogging, cycling, or sports.", "🏃", "low"},
			{"Open Windows", "Feel free to open windows for fresh air ventilation.", "🪟", "low"},
			{"Family Activities", "Perfect conditions for outdoor family activities and picnics.", "👨‍👩‍👧‍👦", "low"},
			{"Garden Time", "Ideal weather for gardening and outdoor work.", "🌱", "low"},
		}
	case aqiValue <= 100:
		return []Card{
			{"Moderate Caution", "Generally safe for outdoor activities with normal precautions.", "⚠️", "low"},
			{"Sensitive Groups", "Those with respiratory issues should consider reducing outdoor exercise.", "🫁", "medium"},
			{"Stay Hydrated", "Drink plenty of water if exercising outdoors.", "💧", "low"},
			{"Monitor Conditions", "Keep an eye on air quality updates throughout the day.", "📱", "low"},
		}
	case aqiValue <= 150:
		return []Card{
			{"Limit Outdoor Time", "Reduce prolonged outdoor exertion, especially for sensitive groups.", "⏰", "medium"},
			{"Use Air Purifier", "Consider running an indoor air purifier.", "🌬️", "medium"},
			{"Wear Mask", "Consider wearing an N95 mask when outdoors.", "😷", "medium"},
			{"Indoor Exercise", "Move workouts indoors when possible.", "🏠", "medium"},
		}
	default:
		return []Card{
			{"Stay Indoors", "Avoid outdoor activities. Keep windows and doors closed.", "🏠", "high"},
			{"Air Purification", "Run air purifiers on high settings. Ensure HEPA filtration.", "🌬️", "high"},
			{"N95 Mask Required", "Wear N95 or better mask if you must go outside.", "😷", "high"},
			{"Health Watch", "Monitor for symptoms. Seek medical help if experiencing breathing difficulties.", "🏥", "high"},
		}
	}
}

func fallbackAdvisory(aqiValue int) string {
	switch {
	case aqiValue <= 50:
		return "Air quality is satisfactory. Enjoy outdoor activities without concern."
	case aqiValue <= 100:
		return "Air quality is acceptable. Unusually sensitive people should consider " +
			"limiting prolonged outdoor exertion."
	case aqiValue <= 150:
		return "Members of sensitive groups may experience health effects. " +
			"The general public is less likely to be affected."
	case aqiValue <= 200:
		return "Everyone may begin to experience health effects. Members of sensitive groups " +
			"may experience more serious health effects."
	case aqiValue <= 300:
		return "Health alert: everyone may experience more serious health effects. " +
			"Avoid outdoor activities."
	default:
		return "Health emergency: the entire population is more likely to be affected. " +
			"Stay indoors with air filtration."
	}
}
