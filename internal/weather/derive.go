package weather

import (
	"math"

	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/solar"
)

const (
	// KelvinOffset converts between Kelvin and Celsius.
	KelvinOffset = 273.15

	// Magnus-form coefficients over water.
	magnusB = 17.62
	magnusC = 243.12

	// dewpointEpsilon bounds |b - gamma| away from the Magnus singularity.
	dewpointEpsilon   = 1e-9
	dewpointTolerance = 1e-6

	// Observations outside this range (Kelvin) are not from this planet.
	minPlausibleTemperature = 150.0
	maxPlausibleTemperature = 350.0

	// Cloud cover split across the three layers. Sums to 1.
	highCloudRatio   = 0.33
	mediumCloudRatio = 0.33
	lowCloudRatio    = 0.34

	// clearSkyIrradiance is the clear-sky proxy in W/m².
	clearSkyIrradiance = 1000.0

	// Power-law wind profile from the 10 m reference height.
	referenceHeight     = 10.0
	windShearExponent   = 0.143
	hubDirectionOffset  = 10.0
	upperSpeedFactor    = 1.5
	upperDirectionShift = 20.0
	gustFactor          = 1.5
)

// Derive builds the feature vector for an observation.
//
// Temperature, humidity, coordinates and timestamp are required. Absent
// optional fields contribute 0. The 900 mb wind is a coarse heuristic
// (speed x1.5, direction +20°), not a physical model.
func Derive(obs *Observation) (*Features, error) {
	if err := validateObservation(obs); err != nil {
		return nil, err
	}

	lat, lon, ts := *obs.Lat, *obs.Lon, *obs.Timestamp
	pos, err := solar.Compute(lat, lon, ts)
	if err != nil {
		return nil, err
	}

	tempK := *obs.Temperature
	humidity := *obs.Humidity

	dewpoint, err := Dewpoint(tempK-KelvinOffset, humidity)
	if err != nil {
		return nil, err
	}

	cloud := valueOr(obs.CloudCover, 0)
	high, medium, low := CloudLayers(cloud)

	rain := valueOr(obs.Rain1h, 0)
	snow := valueOr(obs.Snow1h, 0)

	speed := valueOr(obs.WindSpeed, 0)
	direction := valueOr(obs.WindDirection, 0)
	gust := speed * gustFactor
	if obs.WindGust != nil {
		gust = *obs.WindGust
	}

	return &Features{
		Temperature:          tempK,
		RelativeHumidity:     humidity,
		Dewpoint:             dewpoint,
		MeanSeaLevelPressure: pressure(obs),
		TotalPrecipitation:   rain + snow,
		Snowfall:             snow,
		TotalCloudCover:      cloud,
		HighCloudCover:       high,
		MediumCloudCover:     medium,
		LowCloudCover:        low,
		ShortwaveRadiation:   ShortwaveRadiation(cloud, pos.Zenith),
		WindSpeed10m:         speed,
		WindDirection10m:     direction,
		WindSpeed80m:         WindSpeedAt(speed, 80),
		WindDirection80m:     direction + hubDirectionOffset,
		WindSpeed900mb:       speed * upperSpeedFactor,
		WindDirection900mb:   direction + upperDirectionShift,
		WindGust10m:          gust,
		AngleOfIncidence:     pos.AngleOfIncidence,
		Zenith:               pos.Zenith,
		Azimuth:              pos.Azimuth,

		Lat:       lat,
		Lon:       lon,
		Timestamp: ts,
		Rain1h:    rain,
		Snow1h:    snow,
	}, nil
}

// Dewpoint returns the dewpoint in Celsius for a temperature in Celsius and
// relative humidity in percent. Humidity above 100% and temperatures below
// absolute zero are rejected up front. Between absolute zero and -c the
// denominator b-gamma can still vanish, which is reported rather than
// divided through.
func Dewpoint(tempC, humidity float64) (float64, error) {
	const op = "weather.dewpoint"

	switch {
	case humidity <= 0 || math.IsNaN(humidity):
		return 0, apperr.Computation(op, "relative humidity must be positive")
	case humidity > 100:
		return 0, apperr.Computation(op, "relative humidity above 100%")
	case tempC < -KelvinOffset:
		return 0, apperr.Computation(op, "temperature below absolute zero")
	}

	gamma := math.Log(humidity/100) + magnusB*tempC/(magnusC+tempC)
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return 0, apperr.Computation(op, "magnus gamma is not finite")
	}
	if math.Abs(magnusB-gamma) < dewpointEpsilon {
		return 0, apperr.Computation(op, "magnus denominator is zero")
	}

	td := magnusC * gamma / (magnusB - gamma)
	// At or below saturation the dewpoint cannot exceed the air temperature.
	if math.IsInf(td, 0) || td > tempC+dewpointTolerance {
		return 0, apperr.Computation(op, "dewpoint exceeds air temperature")
	}
	return td, nil
}

// CloudLayers splits total cloud cover into high, medium and low layers.
func CloudLayers(total float64) (high, medium, low float64) {
	return total * highCloudRatio, total * mediumCloudRatio, total * lowCloudRatio
}

// ShortwaveRadiation estimates surface shortwave irradiance from cloud cover
// (percent) and solar zenith (degrees). Zero once the sun is at or below the
// horizon.
func ShortwaveRadiation(cloudCover, zenith float64) float64 {
	return math.Max(0, clearSkyIrradiance*(1-cloudCover/100)*math.Cos(zenith*math.Pi/180))
}

// WindSpeedAt extrapolates a 10 m wind speed to height (m) with the power-law
// profile.
func WindSpeedAt(speed, height float64) float64 {
	return speed * math.Pow(height/referenceHeight, windShearExponent)
}

func pressure(obs *Observation) float64 {
	if obs.SeaLevelPressure != nil {
		return *obs.SeaLevelPressure
	}
	return valueOr(obs.Pressure, 0)
}

func validateObservation(obs *Observation) error {
	const op = "weather.derive"

	if obs == nil {
		return apperr.Validation(op, "observation", "observation is required")
	}

	required := []struct {
		field   string
		present bool
	}{
		{"lat", obs.Lat != nil},
		{"lon", obs.Lon != nil},
		{"timestamp", obs.Timestamp != nil},
		{"temperature", obs.Temperature != nil},
		{"humidity", obs.Humidity != nil},
	}
	for _, r := range required {
		if !r.present {
			return apperr.Validation(op, r.field, r.field+" is required")
		}
	}

	for _, v := range []struct {
		field string
		value float64
	}{
		{"temperature", *obs.Temperature},
		{"humidity", *obs.Humidity},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return apperr.Validation(op, v.field, v.field+" is not a finite number")
		}
	}

	if t := *obs.Temperature; t < minPlausibleTemperature || t > maxPlausibleTemperature {
		return apperr.Validation(op, "temperature", "temperature must be between 150 and 350 K")
	}
	if *obs.Humidity > 100 {
		return apperr.Validation(op, "humidity", "humidity must be at most 100%")
	}

	return nil
}
