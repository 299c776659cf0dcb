package models_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/apperr"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123")

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "Validation error", p.Error, "error falls back to the title")
	assert.Empty(t, p.Detail)
	assert.Nil(t, p.Errors)
}

func TestProblem_WithDetail(t *testing.T) {
	p := models.NewBadGateway("req_test123", "weather.fetch: upstream timed out")

	assert.Equal(t, "weather.fetch: upstream timed out", p.Detail)
	assert.Equal(t, p.Detail, p.Error)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "lat is required", []models.FieldError{
		{Field: "lat", Message: "required", Code: "required"},
	}).WithInstance("/v1/predictions/crops")

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "lat is required", body["error"])
	assert.Equal(t, "lat is required", body["detail"])
	assert.Equal(t, "/v1/predictions/crops", body["instance"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	require.Len(t, body["errors"], 1)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		problem *models.Problem
		status  int
		typ     string
	}{
		{models.NewUnauthorized("t", "d"), http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{models.NewForbidden("t", "d"), http.StatusForbidden, models.ProblemTypeForbidden},
		{models.NewNotFound("t", "d"), http.StatusNotFound, models.ProblemTypeNotFound},
		{models.NewUnsupportedMediaType("t", "d"), http.StatusUnsupportedMediaType, models.ProblemTypeUnsupportedType},
		{models.NewUnprocessable("t", "d"), http.StatusUnprocessableEntity, models.ProblemTypeComputation},
		{models.NewTooManyRequests("t", "d"), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{models.NewInternalError("t", "d"), http.StatusInternalServerError, models.ProblemTypeInternal},
		{models.NewBadGateway("t", "d"), http.StatusBadGateway, models.ProblemTypeUpstream},
		{models.NewServiceUnavailable("t", "d"), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, "d", tt.problem.Error)
		})
	}
}

func TestProblemFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Validation("prediction", "lat", "must be between -90 and 90"), http.StatusBadRequest},
		{"computation", apperr.Computation("weather.dewpoint", "relative humidity must be positive"), http.StatusUnprocessableEntity},
		{"external", apperr.External("model.crop", assert.AnError), http.StatusBadGateway},
		{"unavailable", apperr.Unavailable("model.aqi", assert.AnError), http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("crops: %w", apperr.External("weather.fetch", assert.AnError)), http.StatusBadGateway},
		{"unclassified", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.ProblemFromError("req_1", tt.err)
			assert.Equal(t, tt.status, p.Status)
			assert.NotEmpty(t, p.Error)
		})
	}
}

func TestProblemFromError_FieldErrors(t *testing.T) {
	p := models.ProblemFromError("req_1", apperr.Validation("prediction", "lon", "must be between -180 and 180"))

	require.Len(t, p.Errors, 1)
	assert.Equal(t, "lon", p.Errors[0].Field)
	assert.Equal(t, "must be between -180 and 180", p.Errors[0].Message)
}

func TestProblemFromError_HidesInternalDetail(t *testing.T) {
	p := models.ProblemFromError("req_1", assert.AnError)
	assert.NotContains(t, p.Error, assert.AnError.Error())
}

func TestTimestamp_JSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2024, time.March, 5, 12, 30, 0, 0, time.FixedZone("IST", 19800)))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-05T07:00:00Z"`, string(data))

	var decoded models.Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ts.Time().Equal(decoded.Time()))
}
