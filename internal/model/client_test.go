package model_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/model"
	"github.com/terracast/terracast/internal/provider/resilience"
)

func singleShot(name string) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.DisableRetries = true
	return resilience.NewClient(cfg)
}

// modelServer serves one model and answers predictions with output.
func modelServer(t *testing.T, name string, output string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/"+name, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model_version_status":[{"state":"AVAILABLE"}]}`))
	})
	mux.HandleFunc("POST /v1/models/"+name+":predict", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Instances, 1)

		_, _ = w.Write([]byte(output))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Classify(t *testing.T) {
	server := modelServer(t, "crop", `{"predictions": [[0.6, 0.3, 0.1]]}`)

	client := model.NewClient(model.ClientConfig{
		Name:       "crop",
		BaseURL:    server.URL + "/",
		HTTPClient: singleShot("model-crop"),
		Logger:     zerolog.Nop(),
	})

	probs, err := client.Classify(context.Background(), []float64{52.1, 4.3, 18, 70, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.3, 0.1}, probs)
}

func TestClient_ClassifyLogits(t *testing.T) {
	server := modelServer(t, "crop", `{"predictions": [[2.0, 1.0, 0.1]]}`)

	client := model.NewClient(model.ClientConfig{
		Name:       "crop",
		BaseURL:    server.URL,
		Logits:     true,
		HTTPClient: singleShot("model-crop"),
	})

	probs, err := client.Classify(context.Background(), []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Len(t, probs, 3)

	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, probs[0], probs[1])
	assert.Greater(t, probs[1], probs[2])
}

func TestClient_Regress(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"scalar", `{"predictions": [412.5]}`},
		{"single element row", `{"predictions": [[412.5]]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := modelServer(t, "solar", tc.output)
			client := model.NewClient(model.ClientConfig{
				Name:       "solar",
				BaseURL:    server.URL,
				HTTPClient: singleShot("model-solar"),
			})

			v, err := client.Regress(context.Background(), make([]float64, 20))
			require.NoError(t, err)
			assert.Equal(t, 412.5, v)
		})
	}
}

func TestClient_UnexpectedOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"no predictions", `{"predictions": []}`},
		{"string prediction", `{"predictions": ["high"]}`},
		{"multi-value regression", `{"predictions": [[1, 2]]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := modelServer(t, "wind", tc.output)
			client := model.NewClient(model.ClientConfig{
				Name:       "wind",
				BaseURL:    server.URL,
				HTTPClient: singleShot("model-wind"),
			})

			_, err := client.Regress(context.Background(), make([]float64, 12))
			assert.ErrorIs(t, err, model.ErrUnexpectedOutput)
		})
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := model.NewClient(model.ClientConfig{
		Name:       "aqi",
		BaseURL:    server.URL,
		HTTPClient: singleShot("model-aqi"),
	})

	_, err := client.Regress(context.Background(), make([]float64, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Probe(t *testing.T) {
	server := modelServer(t, "crop", `{}`)

	ok := model.NewClient(model.ClientConfig{Name: "crop", BaseURL: server.URL, HTTPClient: singleShot("a")})
	assert.NoError(t, ok.Probe(context.Background()))

	missing := model.NewClient(model.ClientConfig{Name: "wind", BaseURL: server.URL, HTTPClient: singleShot("b")})
	assert.ErrorIs(t, missing.Probe(context.Background()), model.ErrNotLoaded)

	unconfigured := model.NewClient(model.ClientConfig{Name: "solar", HTTPClient: singleShot("c")})
	assert.ErrorIs(t, unconfigured.Probe(context.Background()), model.ErrNotLoaded)
}

func TestSoftmax(t *testing.T) {
	assert.Nil(t, model.Softmax(nil))

	probs := model.Softmax([]float64{0, 0, 0, 0})
	for _, p := range probs {
		assert.InDelta(t, 0.25, p, 1e-12)
	}

	// Large scores do not overflow.
	probs = model.Softmax([]float64{1000, 999})
	assert.False(t, math.IsNaN(probs[0]))
	assert.InDelta(t, 1/(1+math.Exp(-1)), probs[0], 1e-12)
}
