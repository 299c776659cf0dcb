// Package warehouse persists prediction records.
package warehouse

import (
	"errors"
	"time"

	"github.com/terracast/terracast/internal/crop"
)

// Warehouse errors.
var (
	ErrUnknownKind = errors.New("unknown record kind")
)

// Kind names a record table.
type Kind string

const (
	KindCrops      Kind = "crops"
	KindSolar      Kind = "solar"
	KindWind       Kind = "wind"
	KindAirQuality Kind = "aqi"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCrops, KindSolar, KindWind, KindAirQuality:
		return k, nil
	}
	return "", ErrUnknownKind
}

// CropRecord is one recommended crop for a location.
type CropRecord struct {
	ID          string            `json:"id"`
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	Crop        string            `json:"crop"`
	Confidence  float64           `json:"confidence"`
	N           float64           `json:"N"`
	P           float64           `json:"P"`
	K           float64           `json:"K"`
	PH          float64           `json:"pH"`
	Rainfall    float64           `json:"rainfall"`
	Temperature float64           `json:"temperature"`
	Humidity    float64           `json:"humidity"`
	Price       float64           `json:"price"`
	Pests       []crop.Affliction `json:"pests"`
	Diseases    []crop.Affliction `json:"diseases"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SolarRecord is a solar power prediction with the inputs that produced it.
type SolarRecord struct {
	ID               string             `json:"id"`
	Lat              float64            `json:"lat"`
	Lon              float64            `json:"lon"`
	ObservedAt       time.Time          `json:"observed_at"`
	Features         map[string]float64 `json:"features"`
	PredictedPowerKW float64            `json:"predicted_power_kw"`
	CreatedAt        time.Time          `json:"created_at"`
}

// WindRecord is a wind power prediction with the inputs that produced it.
type WindRecord struct {
	ID             string             `json:"id"`
	Lat            float64            `json:"lat"`
	Lon            float64            `json:"lon"`
	ObservedAt     time.Time          `json:"observed_at"`
	Features       map[string]float64 `json:"features"`
	PredictedPower float64            `json:"predicted_power"`
	CreatedAt      time.Time          `json:"created_at"`
}

// AirQualityRecord is an air quality prediction with its model inputs.
type AirQualityRecord struct {
	ID                string    `json:"id"`
	Lat               float64   `json:"lat"`
	Lon               float64   `json:"lon"`
	Humidity          float64   `json:"humidity"`
	WindSpeed         float64   `json:"wind_speed"`
	WindDirection     float64   `json:"wind_direction"`
	DewPoint          float64   `json:"dew_point"`
	Temperature       float64   `json:"temperature"`
	CloudsAll         float64   `json:"clouds_all"`
	VisibilityInMiles float64   `json:"visibility_in_miles"`
	RainPerHour       float64   `json:"rain_p_h"`
	SnowPerHour       float64   `json:"snow_p_h"`
	TrafficVolume     float64   `json:"traffic_volume"`
	AQI               float64   `json:"aqi"`
	CreatedAt         time.Time `json:"created_at"`
}
