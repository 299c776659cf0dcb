package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/api/handler"
	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/prediction"
)

func TestPredictionHandler_PredictPower(t *testing.T) {
	p := &fakePredictor{}
	h := handler.NewPredictionHandler(p, zerolog.Nop())

	rec := post(h.PredictPower, "/power", `{"lat": 18.52, "lon": 73.85}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1.25, body["solar"]["predicted_power_kw"])
	assert.Equal(t, "success", body["solar"]["status"])
	assert.Equal(t, 0.42, body["wind"]["predicted_power"])

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, predictCall{kind: "power", lat: 18.52, lon: 73.85}, calls[0])
}

func TestPredictionHandler_ZeroCoordinatesAreValid(t *testing.T) {
	p := &fakePredictor{}
	h := handler.NewPredictionHandler(p, zerolog.Nop())

	rec := post(h.PredictAirQuality, "/air_quality", `{"lat": 0, "lon": 0}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"aqi": 72, "category": "moderate"}`, rec.Body.String())
}

func TestPredictionHandler_Options(t *testing.T) {
	p := &fakePredictor{}
	h := handler.NewPredictionHandler(p, zerolog.Nop())

	rec := post(h.PredictCrops, "/crops_info", `{"lat": 9.93, "lon": 76.26, "skip_enrichment": true, "dry_run": true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, prediction.Options{SkipEnrichment: true, SkipPersistence: true}, calls[0].opts)
}

func TestPredictionHandler_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
		fields []string
	}{
		{name: "empty body", body: "", detail: "request body is empty"},
		{name: "not json", body: "lat=1", detail: "request body must be a JSON object with lat and lon"},
		{name: "wrong type", body: `{"lat": "north", "lon": 1}`, detail: "request body must be a JSON object with lat and lon"},
		{name: "missing lat", body: `{"lon": 10}`, detail: "lat is required", fields: []string{"lat"}},
		{name: "missing both", body: `{}`, detail: "lat is required", fields: []string{"lat", "lon"}},
		{name: "lat out of range", body: `{"lat": 91, "lon": 10}`, detail: "lat must be at most 90", fields: []string{"lat"}},
		{name: "lon out of range", body: `{"lat": 10, "lon": -180.5}`, detail: "lon must be at least -180", fields: []string{"lon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{}
			h := handler.NewPredictionHandler(p, zerolog.Nop())

			rec := post(h.PredictCrops, "/v1/predictions/crops", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, tt.detail, problem.Error)
			fields := make([]string, 0, len(problem.Errors))
			for _, fe := range problem.Errors {
				fields = append(fields, fe.Field)
			}
			if tt.fields == nil {
				assert.Empty(t, fields)
			} else {
				assert.Equal(t, tt.fields, fields)
			}
			assert.Empty(t, p.Calls())
		})
	}
}

func TestPredictionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"computation", apperr.Computation("weather.dewpoint", "relative humidity must be positive"), http.StatusUnprocessableEntity},
		{"upstream", apperr.External("weather.fetch", assert.AnError), http.StatusBadGateway},
		{"model not loaded", apperr.Unavailable("model.crop", assert.AnError), http.StatusServiceUnavailable},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewPredictionHandler(&fakePredictor{err: tt.err}, zerolog.Nop())

			rec := post(h.PredictPower, "/v1/predictions/power", `{"lat": 52.37, "lon": 4.89}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, decodeProblem(t, rec).Error)
		})
	}
}

func TestPredictionHandler_GetFeatures(t *testing.T) {
	h := handler.NewPredictionHandler(&fakePredictor{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetFeatures(rec, httptest.NewRequest(http.MethodGet, "/v1/features?lat=9.93&lon=76.26", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.FeaturesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 9.93, body.Lat)
	assert.Equal(t, 76.26, body.Lon)
	assert.Equal(t, int64(1700000000), body.ObservedAt.Time().Unix())
	require.Len(t, body.Features, 21)
	assert.Equal(t, "temperature_2_m_above_gnd", body.Features[0].Name)
	assert.Equal(t, 300.15, body.Features[0].Value)
}

func TestPredictionHandler_GetFeaturesInvalidQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		detail string
	}{
		{"missing", "", "lat is required"},
		{"not a number", "?lat=abc&lon=1", "lat must be a number"},
		{"out of range", "?lat=10&lon=200", "lon must be at most 180"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{}
			h := handler.NewPredictionHandler(p, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.GetFeatures(rec, httptest.NewRequest(http.MethodGet, "/v1/features"+tt.query, http.NoBody))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.detail, decodeProblem(t, rec).Error)
			assert.Empty(t, p.Calls())
		})
	}
}
