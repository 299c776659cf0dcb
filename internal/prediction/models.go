package prediction

import (
	"time"

	"github.com/terracast/terracast/internal/crop"
)

// Options tune a single prediction request.
type Options struct {
	// SkipEnrichment returns recommendations without pest and disease notes.
	SkipEnrichment bool

	// SkipPersistence neither stores nor publishes the prediction.
	SkipPersistence bool
}

// CropResult is the crop recommendation response.
type CropResult struct {
	Data []crop.EnrichedRecommendation `json:"data"`
}

// SolarOutput is the solar power prediction.
type SolarOutput struct {
	PredictedPowerKW float64 `json:"predicted_power_kw"`
	Status           string  `json:"status"`
}

// WindOutput is the wind power prediction.
type WindOutput struct {
	PredictedPower float64   `json:"predicted_power"`
	Timestamp      time.Time `json:"timestamp"`
}

// PowerResult combines the solar and wind predictions for a location.
type PowerResult struct {
	Solar SolarOutput `json:"solar"`
	Wind  WindOutput  `json:"wind"`
}

// AirQualityResult is the air quality prediction with its band.
type AirQualityResult struct {
	AQI      float64     `json:"aqi"`
	Category AQICategory `json:"category"`
}

// AQICategory is an air quality index band.
type AQICategory string

const (
	AQIGood                        AQICategory = "good"
	AQIModerate                    AQICategory = "moderate"
	AQIUnhealthyForSensitiveGroups AQICategory = "unhealthy_for_sensitive_groups"
	AQIUnhealthy                   AQICategory = "unhealthy"
	AQIVeryUnhealthy               AQICategory = "very_unhealthy"
	AQIHazardous                   AQICategory = "hazardous"
)

// CategoryForAQI returns the band an index value falls in. Negative values
// are treated as good.
func CategoryForAQI(aqi float64) AQICategory {
	switch {
	case aqi <= 50:
		return AQIGood
	case aqi <= 100:
		return AQIModerate
	case aqi <= 150:
		return AQIUnhealthyForSensitiveGroups
	case aqi <= 200:
		return AQIUnhealthy
	case aqi <= 300:
		return AQIVeryUnhealthy
	default:
		return AQIHazardous
	}
}
