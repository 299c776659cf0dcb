package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation is a current-conditions observation as reported by a provider.
//
// Every provider-sourced field is optional. Temperature, Humidity, Lat, Lon
// and Timestamp are required by Derive; the rest default to 0 when absent.
type Observation struct {
	// Location coordinates
	Lat *float64
	Lon *float64

	// Observation time, epoch seconds
	Timestamp *int64

	// Temperature in Kelvin
	Temperature *float64

	// Relative humidity percentage (0-100)
	Humidity *float64

	// Station and sea-level pressure in hPa
	Pressure         *float64
	SeaLevelPressure *float64

	// Precipitation over the last hour, mm
	Rain1h *float64
	Snow1h *float64

	// Cloud cover percentage (0-100)
	CloudCover *float64

	// Wind at 10 m
	WindSpeed     *float64 // m/s
	WindDirection *float64 // degrees (0-360, 0=N, 90=E, 180=S, 270=W)
	WindGust      *float64 // m/s

	// Weather condition
	Condition   Condition
	Description string

	FetchedAt time.Time
}

// ObservedAt returns the observation time, or the zero time when unknown.
func (o *Observation) ObservedAt() time.Time {
	if o.Timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*o.Timestamp, 0).UTC()
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// valueOr returns *p, or def when p is nil.
func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// FeatureNames lists the derived feature names in vector order. Downstream
// models bind to these positionally.
var FeatureNames = []string{
	"temperature_2_m_above_gnd",
	"relative_humidity_2_m_above_gnd",
	"dewpoint_2m",
	"mean_sea_level_pressure_MSL",
	"total_precipitation_sfc",
	"snowfall_amount_sfc",
	"total_cloud_cover_sfc",
	"high_cloud_cover_high_cld_lay",
	"medium_cloud_cover_mid_cld_lay",
	"low_cloud_cover_low_cld_lay",
	"shortwave_radiation_backwards_sfc",
	"wind_speed_10_m_above_gnd",
	"wind_direction_10_m_above_gnd",
	"wind_speed_80_m_above_gnd",
	"wind_direction_80_m_above_gnd",
	"wind_speed_900_mb",
	"wind_direction_900_mb",
	"wind_gust_10_m_above_gnd",
	"angle_of_incidence",
	"zenith",
	"azimuth",
}

// Features is the derived feature vector for one observation. Field order
// matches FeatureNames, so the JSON encoding keeps the vector order.
type Features struct {
	Temperature          float64 `json:"temperature_2_m_above_gnd"`
	RelativeHumidity     float64 `json:"relative_humidity_2_m_above_gnd"`
	Dewpoint             float64 `json:"dewpoint_2m"`
	MeanSeaLevelPressure float64 `json:"mean_sea_level_pressure_MSL"`
	TotalPrecipitation   float64 `json:"total_precipitation_sfc"`
	Snowfall             float64 `json:"snowfall_amount_sfc"`
	TotalCloudCover      float64 `json:"total_cloud_cover_sfc"`
	HighCloudCover       float64 `json:"high_cloud_cover_high_cld_lay"`
	MediumCloudCover     float64 `json:"medium_cloud_cover_mid_cld_lay"`
	LowCloudCover        float64 `json:"low_cloud_cover_low_cld_lay"`
	ShortwaveRadiation   float64 `json:"shortwave_radiation_backwards_sfc"`
	WindSpeed10m         float64 `json:"wind_speed_10_m_above_gnd"`
	WindDirection10m     float64 `json:"wind_direction_10_m_above_gnd"`
	WindSpeed80m         float64 `json:"wind_speed_80_m_above_gnd"`
	WindDirection80m     float64 `json:"wind_direction_80_m_above_gnd"`
	WindSpeed900mb       float64 `json:"wind_speed_900_mb"`
	WindDirection900mb   float64 `json:"wind_direction_900_mb"`
	WindGust10m          float64 `json:"wind_gust_10_m_above_gnd"`
	AngleOfIncidence     float64 `json:"angle_of_incidence"`
	Zenith               float64 `json:"zenith"`
	Azimuth              float64 `json:"azimuth"`

	// Observation context used by the model input builders.
	Lat       float64 `json:"-"`
	Lon       float64 `json:"-"`
	Timestamp int64   `json:"-"`
	Rain1h    float64 `json:"-"`
	Snow1h    float64 `json:"-"`
}

// Values returns the feature values in FeatureNames order.
func (f *Features) Values() []float64 {
	return []float64{
		f.Temperature,
		f.RelativeHumidity,
		f.Dewpoint,
		f.MeanSeaLevelPressure,
		f.TotalPrecipitation,
		f.Snowfall,
		f.TotalCloudCover,
		f.HighCloudCover,
		f.MediumCloudCover,
		f.LowCloudCover,
		f.ShortwaveRadiation,
		f.WindSpeed10m,
		f.WindDirection10m,
		f.WindSpeed80m,
		f.WindDirection80m,
		f.WindSpeed900mb,
		f.WindDirection900mb,
		f.WindGust10m,
		f.AngleOfIncidence,
		f.Zenith,
		f.Azimuth,
	}
}

// Named returns the features as name/value pairs in vector order.
func (f *Features) Named() []NamedValue {
	values := f.Values()
	out := make([]NamedValue, len(values))
	for i, v := range values {
		out[i] = NamedValue{Name: FeatureNames[i], Value: v}
	}
	return out
}

// NamedValue is a single named feature.
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// TemperatureCelsius returns the observed temperature in Celsius.
func (f *Features) TemperatureCelsius() float64 {
	return f.Temperature - KelvinOffset
}

// ObservedAt returns the observation time in UTC.
func (f *Features) ObservedAt() time.Time {
	return time.Unix(f.Timestamp, 0).UTC()
}
