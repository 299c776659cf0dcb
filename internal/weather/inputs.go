package weather

import "math"

const (
	// Hub height used for the wind power model.
	windPowerHeight = 100.0

	// Air quality model constants.
	maxVisibilityMiles = 10.0
	minVisibilityMiles = 0.1
	defaultTraffic     = 1000.0
)

// SolarFeatureNames names the SolarInput values.
var SolarFeatureNames = append(append([]string{}, FeatureNames[:2]...), FeatureNames[3:]...)

// WindPowerFeatureNames names the WindPowerInput values.
var WindPowerFeatureNames = []string{
	"dewpoint_2m",
	"winddirection_100m",
	"windspeed_100m",
	"hour",
	"day",
	"month",
	"year",
	"temperature_2_m_above_gnd",
	"relative_humidity_2_m_above_gnd",
	"wind_speed_10_m_above_gnd",
	"wind_direction_10_m_above_gnd",
	"wind_gust_10_m_above_gnd",
}

// SolarInput returns the solar power model input: the feature vector without
// the dewpoint.
func (f *Features) SolarInput() []float64 {
	values := f.Values()
	out := make([]float64, 0, len(values)-1)
	out = append(out, values[:2]...)
	return append(out, values[3:]...)
}

// WindPowerInput returns the wind power model input: dewpoint, 100 m
// direction and speed, hour, day, month, year, temperature, humidity, 10 m
// speed and direction, gust.
func (f *Features) WindPowerInput() []float64 {
	t := f.ObservedAt()
	return []float64{
		f.Dewpoint,
		f.WindDirection10m + hubDirectionOffset,
		WindSpeedAt(f.WindSpeed10m, windPowerHeight),
		float64(t.Hour()),
		float64(t.Day()),
		float64(t.Month()),
		float64(t.Year()),
		f.Temperature,
		f.RelativeHumidity,
		f.WindSpeed10m,
		f.WindDirection10m,
		f.WindGust10m,
	}
}

// AirQualityInput returns the air quality model input: humidity, wind speed,
// wind direction, visibility (miles), dewpoint, temperature, rain and snow per
// hour, cloud cover and traffic volume.
func (f *Features) AirQualityInput() []float64 {
	return []float64{
		f.RelativeHumidity,
		f.WindSpeed10m,
		f.WindDirection10m,
		Visibility(f.TemperatureCelsius(), f.Dewpoint, f.RelativeHumidity),
		f.Dewpoint,
		f.Temperature,
		f.Rain1h,
		f.Snow1h,
		f.TotalCloudCover,
		defaultTraffic,
	}
}

// CropInput returns the crop classifier input: latitude, longitude,
// temperature (Celsius), humidity and rainfall.
func (f *Features) CropInput() []float64 {
	return []float64{
		f.Lat,
		f.Lon,
		f.TemperatureCelsius(),
		f.RelativeHumidity,
		f.Rain1h,
	}
}

// Visibility estimates visibility in miles from temperature and dewpoint
// (both Celsius) and relative humidity. The result is clamped to [0.1, 10].
func Visibility(tempC, dewpointC, humidity float64) float64 {
	humidityFactor := 1 - humidity/100
	spread := math.Abs(tempC - dewpointC)
	v := maxVisibilityMiles * humidityFactor * (1 - spread/100)
	return math.Max(math.Min(v, maxVisibilityMiles), minVisibilityMiles)
}
