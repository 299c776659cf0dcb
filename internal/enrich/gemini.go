// Package enrich adds generated pest and disease notes to crop
// recommendations using the Gemini generateContent API.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/crop"
	"github.com/terracast/terracast/internal/provider/resilience"
)

const (
	// ProviderName identifies this enrichment provider.
	ProviderName = "gemini"

	// DefaultBaseURL is the Generative Language API base URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash"
)

// ErrMalformedResponse is returned when the generated text is not the
// expected JSON array.
var ErrMalformedResponse = errors.New("malformed enrichment response")

const instructions = `Respond with a JSON array only, no prose and no markdown.
For every crop object in the input array return an object with the same "crop" value and two extra fields:
"pests": an array of {"name", "description"} objects for common pests of that crop,
"diseases": an array of {"name", "description"} objects for common diseases of that crop.
Input:
`

// Enricher adds pest and disease notes to recommendations.
type Enricher interface {
	Enrich(ctx context.Context, recs []crop.Recommendation) ([]crop.EnrichedRecommendation, error)
}

// ClientConfig holds configuration for the Gemini client.
type ClientConfig struct {
	// APIKey is the Generative Language API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// Model is the model name (optional, defaults to DefaultModel).
	Model string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Gemini enrichment client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Gemini client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.DisableRetries = true
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Enrich asks the model for pests and diseases of each recommended crop and
// merges them in. Only the generated lists are taken from the response; the
// recommendation fields are never overwritten.
func (c *Client) Enrich(ctx context.Context, recs []crop.Recommendation) ([]crop.EnrichedRecommendation, error) {
	if len(recs) == 0 {
		return Passthrough(recs), nil
	}

	input, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encoding recommendations: %w", err)
	}

	text, err := c.generate(ctx, instructions+string(input))
	if err != nil {
		return nil, err
	}

	generated, err := parseGenerated(text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("recommendations", len(recs)).
		Int("generated", len(generated)).
		Msg("enriched crop recommendations")

	return merge(recs, generated), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	for _, cand := range out.Candidates {
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}

	return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
}

// generatedCrop is the part of a generated object we keep.
type generatedCrop struct {
	Crop     string            `json:"crop"`
	Pests    []crop.Affliction `json:"pests"`
	Diseases []crop.Affliction `json:"diseases"`
}

// parseGenerated decodes the generated JSON array, tolerating a markdown
// code fence around it.
func parseGenerated(text string) ([]generatedCrop, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var out []generatedCrop
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

// merge attaches generated lists to recommendations by crop name. Crops the
// model left out get empty lists.
func merge(recs []crop.Recommendation, generated []generatedCrop) []crop.EnrichedRecommendation {
	byName := make(map[string]generatedCrop, len(generated))
	for _, g := range generated {
		if _, seen := byName[g.Crop]; !seen {
			byName[g.Crop] = g
		}
	}

	out := Passthrough(recs)
	for i := range out {
		g, ok := byName[out[i].Crop]
		if !ok {
			continue
		}
		if g.Pests != nil {
			out[i].Pests = g.Pests
		}
		if g.Diseases != nil {
			out[i].Diseases = g.Diseases
		}
	}
	return out
}

// Passthrough wraps recommendations with empty pest and disease lists.
func Passthrough(recs []crop.Recommendation) []crop.EnrichedRecommendation {
	out := make([]crop.EnrichedRecommendation, len(recs))
	for i, r := range recs {
		out[i] = crop.EnrichedRecommendation{
			Recommendation: r,
			Pests:          []crop.Affliction{},
			Diseases:       []crop.Affliction{},
		}
	}
	return out
}

// Gemini API structures.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
