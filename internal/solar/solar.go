// Package solar computes the sun's position for a coordinate and instant.
//
// The model is the simple declination / hour-angle approximation: no
// equation-of-time or longitude correction is applied and the hour angle is
// taken from the UTC clock. Timestamps are always interpreted in UTC.
package solar

import (
	"math"
	"time"

	"github.com/terracast/terracast/internal/apperr"
)

const (
	// MaxDeclination is the axial tilt used by the declination formula, in degrees.
	MaxDeclination = 23.45

	// acosTolerance absorbs rounding noise in the zenith cosine.
	acosTolerance = 1e-9
)

// Position is the sun's position as seen from a point on the ground.
// All angles are in degrees.
type Position struct {
	// Zenith is the angle between the local vertical and the sun, in [0, 180].
	Zenith float64

	// Azimuth is measured clockwise from true north, in [0, 360).
	Azimuth float64

	// AngleOfIncidence on a flat, untilted panel. Equal to Zenith.
	AngleOfIncidence float64
}

// Compute returns the solar position for lat/lon (degrees) at the given epoch
// timestamp (seconds). The calendar is UTC.
func Compute(lat, lon float64, timestamp int64) (Position, error) {
	if err := validate(lat, lon); err != nil {
		return Position{}, err
	}

	t := time.Unix(timestamp, 0).UTC()
	hour := float64(t.Hour()) + float64(t.Minute())/60
	dayOfYear := float64(t.YearDay())

	declination := Declination(dayOfYear)
	hourAngle := HourAngle(hour)

	latRad := radians(lat)
	declRad := radians(declination)
	hourRad := radians(hourAngle)

	cosZenith := math.Sin(latRad)*math.Sin(declRad) +
		math.Cos(latRad)*math.Cos(declRad)*math.Cos(hourRad)
	if cosZenith > 1+acosTolerance || cosZenith < -1-acosTolerance || math.IsNaN(cosZenith) {
		return Position{}, apperr.Computation("solar.zenith", "cosine of zenith outside [-1, 1]")
	}
	cosZenith = math.Max(-1, math.Min(1, cosZenith))

	zenith := degrees(math.Acos(cosZenith))

	azimuth := degrees(math.Atan2(
		-math.Cos(declRad)*math.Sin(hourRad),
		math.Cos(latRad)*math.Sin(declRad)-math.Sin(latRad)*math.Cos(declRad)*math.Cos(hourRad),
	))
	azimuth = math.Mod(azimuth+360, 360)

	return Position{
		Zenith:           zenith,
		Azimuth:          azimuth,
		AngleOfIncidence: zenith,
	}, nil
}

// Declination returns the solar declination in degrees for a day of year (1-366).
func Declination(dayOfYear float64) float64 {
	return MaxDeclination * math.Sin(radians(360.0/365.0*(dayOfYear-81)))
}

// HourAngle returns the hour angle in degrees for a fractional hour of day.
// Solar noon is fixed at 12:00.
func HourAngle(hour float64) float64 {
	return 15 * (hour - 12)
}

func validate(lat, lon float64) error {
	switch {
	case math.IsNaN(lat) || math.IsInf(lat, 0):
		return apperr.Validation("solar", "lat", "latitude is not a finite number")
	case math.IsNaN(lon) || math.IsInf(lon, 0):
		return apperr.Validation("solar", "lon", "longitude is not a finite number")
	case lat < -90 || lat > 90:
		return apperr.Validation("solar", "lat", "latitude must be between -90 and 90")
	case lon < -180 || lon > 180:
		return apperr.Validation("solar", "lon", "longitude must be between -180 and 180")
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
