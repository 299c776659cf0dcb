// Package model talks to the model serving endpoints that host the crop,
// solar, wind and air quality models.
//
// Servers speak the TensorFlow Serving REST predict protocol:
// POST {base}/v1/models/{name}:predict with {"instances": [[...]]},
// answered by {"predictions": [...]}.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/provider/resilience"
)

// Model errors.
var (
	ErrNotLoaded        = errors.New("model not loaded")
	ErrUnexpectedOutput = errors.New("unexpected model output")
)

// Model names.
const (
	NameCrop       = "crop"
	NameSolar      = "solar"
	NameWind       = "wind"
	NameAirQuality = "aqi"
)

// Classifier returns a class probability vector for one input row.
type Classifier interface {
	Classify(ctx context.Context, input []float64) ([]float64, error)
}

// Regressor returns a single value for one input row.
type Regressor interface {
	Regress(ctx context.Context, input []float64) (float64, error)
}

// ClientConfig holds configuration for a model serving client.
type ClientConfig struct {
	// Name is the model name on the server.
	Name string

	// BaseURL is the serving root, e.g. http://models:8501.
	BaseURL string

	// Logits marks classifier output as raw scores; Classify applies softmax.
	Logits bool

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client calls one served model.
type Client struct {
	name       string
	baseURL    string
	logits     bool
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new model client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("model-" + cfg.Name))
	}

	return &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logits:     cfg.Logits,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the model name.
func (c *Client) Name() string {
	return c.name
}

// Probe checks that the server has the model available.
func (c *Client) Probe(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no endpoint configured for %s", ErrNotLoaded, c.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing model %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d", ErrNotLoaded, c.name, resp.StatusCode)
	}
	return nil
}

// Predict returns the model output row for one input row. Scalar outputs
// come back as a one-element slice.
func (c *Client) Predict(ctx context.Context, input []float64) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: [][]float64{input}})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL()+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model %s: unexpected status code: %d", c.name, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("%w: %s returned no predictions", ErrUnexpectedOutput, c.name)
	}

	row, err := decodeRow(out.Predictions[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnexpectedOutput, c.name, err)
	}

	c.logger.Debug().
		Str("model", c.name).
		Int("inputs", len(input)).
		Int("outputs", len(row)).
		Msg("model prediction")

	return row, nil
}

// Classify returns class probabilities.
func (c *Client) Classify(ctx context.Context, input []float64) ([]float64, error) {
	row, err := c.Predict(ctx, input)
	if err != nil {
		return nil, err
	}
	if c.logits {
		return Softmax(row), nil
	}
	return row, nil
}

// Regress returns the single predicted value.
func (c *Client) Regress(ctx context.Context, input []float64) (float64, error) {
	row, err := c.Predict(ctx, input)
	if err != nil {
		return 0, err
	}
	if len(row) != 1 {
		return 0, fmt.Errorf("%w: %s returned %d values, want 1", ErrUnexpectedOutput, c.name, len(row))
	}
	return row[0], nil
}

func (c *Client) modelURL() string {
	return c.baseURL + "/v1/models/" + c.name
}

// Softmax normalizes raw scores into probabilities.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

// decodeRow accepts either a number or an array of numbers.
func decodeRow(raw json.RawMessage) ([]float64, error) {
	var row []float64
	if err := json.Unmarshal(raw, &row); err == nil {
		return row, nil
	}

	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, fmt.Errorf("prediction is neither a number nor an array: %s", raw)
	}
	return []float64{scalar}, nil
}
