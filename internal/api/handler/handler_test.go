package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/prediction"
	"github.com/terracast/terracast/internal/weather"
)

// fakePredictor records calls and returns canned results.
type fakePredictor struct {
	mu    sync.Mutex
	calls []predictCall
	err   error
}

type predictCall struct {
	kind     string
	lat, lon float64
	opts     prediction.Options
}

func (f *fakePredictor) record(kind string, lat, lon float64, opts prediction.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, predictCall{kind: kind, lat: lat, lon: lon, opts: opts})
	return f.err
}

func (f *fakePredictor) Features(_ context.Context, lat, lon float64) (*weather.Features, error) {
	if err := f.record("features", lat, lon, prediction.Options{}); err != nil {
		return nil, err
	}
	return &weather.Features{Temperature: 300.15, RelativeHumidity: 70, Lat: lat, Lon: lon, Timestamp: 1700000000}, nil
}

func (f *fakePredictor) PredictCrops(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.CropResult, error) {
	if err := f.record("crops", lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.CropResult{}, nil
}

func (f *fakePredictor) PredictPower(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.PowerResult, error) {
	if err := f.record("power", lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.PowerResult{
		Solar: prediction.SolarOutput{PredictedPowerKW: 1.25, Status: "success"},
		Wind:  prediction.WindOutput{PredictedPower: 0.42},
	}, nil
}

func (f *fakePredictor) PredictAirQuality(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.AirQualityResult, error) {
	if err := f.record("aqi", lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.AirQualityResult{AQI: 72, Category: prediction.AQIModerate}, nil
}

func (f *fakePredictor) Calls() []predictCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]predictCall(nil), f.calls...)
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// serveRoute runs h behind a chi route so URL parameters resolve.
func serveRoute(pattern string, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}
