package weather_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/weather"
)

func derived(t *testing.T) *weather.Features {
	t.Helper()
	f, err := weather.Derive(baseObservation())
	require.NoError(t, err)
	return f
}

func TestFeatures_SolarInput(t *testing.T) {
	f := derived(t)

	input := f.SolarInput()
	require.Len(t, input, 20)

	values := f.Values()
	assert.Equal(t, values[0], input[0])
	assert.Equal(t, values[1], input[1])
	// Dewpoint dropped, remaining features shift left by one.
	assert.Equal(t, values[3], input[2])
	assert.Equal(t, values[20], input[19])
	assert.NotContains(t, input, f.Dewpoint)
}

func TestFeatures_WindPowerInput(t *testing.T) {
	f := derived(t)

	input := f.WindPowerInput()
	require.Len(t, input, 12)

	assert.Equal(t, f.Dewpoint, input[0])
	assert.Equal(t, 210.0, input[1])
	assert.InDelta(t, 5*math.Pow(10, 0.143), input[2], 1e-12)
	assert.Equal(t, []float64{12, 22, 3, 2023}, input[3:7])
	assert.Equal(t, 293.15, input[7])
	assert.Equal(t, 50.0, input[8])
	assert.Equal(t, 5.0, input[9])
	assert.Equal(t, 200.0, input[10])
	assert.Equal(t, 7.5, input[11])
}

func TestFeatures_AirQualityInput(t *testing.T) {
	f := derived(t)

	input := f.AirQualityInput()
	require.Len(t, input, 10)

	assert.Equal(t, 50.0, input[0])
	assert.Equal(t, 5.0, input[1])
	assert.Equal(t, 200.0, input[2])
	assert.Equal(t, weather.Visibility(20, f.Dewpoint, 50), input[3])
	assert.Equal(t, f.Dewpoint, input[4])
	assert.Equal(t, 293.15, input[5])
	assert.Equal(t, 1.2, input[6])
	assert.Equal(t, 0.3, input[7])
	assert.Equal(t, 40.0, input[8])
	assert.Equal(t, 1000.0, input[9])
}

func TestFeatures_CropInput(t *testing.T) {
	f := derived(t)

	input := f.CropInput()
	require.Len(t, input, 5)

	assert.Equal(t, 0.0, input[0])
	assert.Equal(t, 0.0, input[1])
	assert.InDelta(t, 20.0, input[2], 1e-9)
	assert.Equal(t, 50.0, input[3])
	assert.Equal(t, 1.2, input[4])
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		name     string
		tempC    float64
		dewC     float64
		humidity float64
		expected float64
	}{
		{"dry and wide spread", 30, 10, 20, 10 * 0.8 * 0.8},
		{"saturated clamps to minimum", 15, 15, 100, 0.1},
		{"zero humidity no spread", 20, 20, 0, 10},
		{"large spread clamps to minimum", 20, -120, 10, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, weather.Visibility(tc.tempC, tc.dewC, tc.humidity), 1e-9)
		})
	}
}

func TestInputFeatureNames(t *testing.T) {
	assert.Len(t, weather.SolarFeatureNames, 20)
	assert.NotContains(t, weather.SolarFeatureNames, "dewpoint_2m")
	assert.Equal(t, "temperature_2_m_above_gnd", weather.SolarFeatureNames[0])
	assert.Equal(t, "azimuth", weather.SolarFeatureNames[19])

	assert.Len(t, weather.WindPowerFeatureNames, 12)
	assert.Equal(t, "dewpoint_2m", weather.WindPowerFeatureNames[0])

	// The shared slice is not aliased.
	assert.Equal(t, "dewpoint_2m", weather.FeatureNames[2])
}
