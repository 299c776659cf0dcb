package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/provider/resilience"
	"github.com/terracast/terracast/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Clock stamps FetchedAt. Defaults to the real clock.
	Clock clockwork.Clock
}

// Client is an OpenWeatherMap API client. Observations are requested in
// standard units, so temperatures arrive in Kelvin.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	clock      clockwork.Clock
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		clock:      clock,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// HTTPClient exposes the underlying resilient client for health reporting.
func (c *Client) HTTPClient() *resilience.Client {
	return c.httpClient
}

// GetCurrentWeather fetches current weather for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, weather.ErrNoDataForLocation
	case resp.StatusCode != http.StatusOK:
		return nil, decodeAPIError(resp)
	}

	var owmResp currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("received current weather")

	return toObservation(&owmResp, c.clock.Now().UTC()), nil
}

// toObservation converts an OpenWeatherMap response to the domain model.
// Fields missing from the payload stay nil.
func toObservation(resp *currentWeatherResponse, fetchedAt time.Time) *weather.Observation {
	obs := &weather.Observation{
		Timestamp:        resp.Dt,
		Temperature:      resp.Main.Temp,
		Humidity:         resp.Main.Humidity,
		Pressure:         resp.Main.Pressure,
		SeaLevelPressure: resp.Main.SeaLevel,
		FetchedAt:        fetchedAt,
	}

	if resp.Coord != nil {
		obs.Lat = resp.Coord.Lat
		obs.Lon = resp.Coord.Lon
	}
	if resp.Rain != nil {
		obs.Rain1h = resp.Rain.OneHour
	}
	if resp.Snow != nil {
		obs.Snow1h = resp.Snow.OneHour
	}
	if resp.Clouds != nil {
		obs.CloudCover = resp.Clouds.All
	}
	if resp.Wind != nil {
		obs.WindSpeed = resp.Wind.Speed
		obs.WindDirection = resp.Wind.Deg
		obs.WindGust = resp.Wind.Gust
	}

	if len(resp.Weather) > 0 {
		obs.Condition = mapCondition(resp.Weather[0].Main)
		obs.Description = resp.Weather[0].Description
	} else {
		obs.Condition = weather.ConditionUnknown
	}

	return obs
}

var conditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionClouds,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionDrizzle,
	"Thunderstorm": weather.ConditionThunderstorm,
	"Snow":         weather.ConditionSnow,
	"Mist":         weather.ConditionMist,
	"Fog":          weather.ConditionFog,
	"Haze":         weather.ConditionHaze,
	"Dust":         weather.ConditionHaze,
	"Sand":         weather.ConditionHaze,
	"Ash":          weather.ConditionHaze,
	"Squall":       weather.ConditionHaze,
	"Tornado":      weather.ConditionHaze,
}

func mapCondition(main string) weather.Condition {
	if c, ok := conditions[main]; ok {
		return c
	}
	return weather.ConditionUnknown
}

// APIError is a non-200 answer from OpenWeatherMap. Message carries the
// provider's explanation when the body had one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openweathermap: status %d", e.StatusCode)
	}
	return fmt.Sprintf("openweathermap: status %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}

// OpenWeatherMap API response structures.

type currentWeatherResponse struct {
	Coord *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Pressure *float64 `json:"pressure"`
		SeaLevel *float64 `json:"sea_level"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Rain *precipitation `json:"rain"`
	Snow *precipitation `json:"snow"`
	Dt   *int64         `json:"dt"`
	Name string         `json:"name"`
}

type precipitation struct {
	OneHour *float64 `json:"1h"`
}
