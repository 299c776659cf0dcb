// Package config loads process configuration from the environment.
//
// Values are resolved from the OS environment first, then from a dotenv file.
// Missing required values or invalid formats fail startup.
package config

import (
	"time"

	"github.com/terracast/terracast/internal/database"
	"github.com/terracast/terracast/internal/worker"
)

// Config is the top-level configuration shared by the API and the worker.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"required,oneof=development test staging production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Server    ServerConfig
	Database  database.Config
	Weather   WeatherConfig
	Models    ModelConfig
	Crops     CropConfig
	Gemini    GeminiConfig
	Kafka     KafkaConfig
	PubSub    PubSubConfig
	Batch     BatchConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`

	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// PredictionRateLimit is the per-IP request budget per minute on
	// prediction endpoints.
	PredictionRateLimit int `envconfig:"PREDICTION_RATE_LIMIT" default:"30" validate:"min=1"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `envconfig:"REQUIRE_TLS" default:"false"`

	// MetricsPort serves the worker's Prometheus endpoint.
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090" validate:"required,numeric"`
}

// WeatherConfig holds weather provider settings.
type WeatherConfig struct {
	APIKey          string        `envconfig:"OPENWEATHERMAP_API_KEY" validate:"required"`
	BaseURL         string        `envconfig:"OPENWEATHERMAP_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"url"`
	CacheTTL        time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
	CacheGridSize   float64       `envconfig:"WEATHER_CACHE_GRID" default:"0.01" validate:"gt=0"`
	StaleIfErrorTTL time.Duration `envconfig:"WEATHER_STALE_IF_ERROR_TTL" default:"1h"`
	FetchTimeout    time.Duration `envconfig:"WEATHER_FETCH_TIMEOUT" default:"15s"`
}

// ModelConfig holds model server settings.
type ModelConfig struct {
	BaseURL string        `envconfig:"MODEL_SERVER_URL" default:"http://localhost:8501" validate:"url"`
	Timeout time.Duration `envconfig:"MODEL_TIMEOUT" default:"10s"`

	// CropLogits marks the crop model as returning raw scores that need a
	// softmax.
	CropLogits bool `envconfig:"MODEL_CROP_LOGITS" default:"false"`
}

// CropConfig holds crop reference data settings.
type CropConfig struct {
	StatsPath    string  `envconfig:"CROP_STATS_PATH" default:"data/crop_stats.json" validate:"required"`
	LabelsPath   string  `envconfig:"CROP_LABELS_PATH" default:"data/crop_labels.json" validate:"required"`
	PriceDivisor float64 `envconfig:"CROP_PRICE_DIVISOR" default:"50" validate:"gt=0"`
	TopK         int     `envconfig:"CROP_TOP_K" default:"3" validate:"min=1"`
}

// GeminiConfig holds enrichment settings. Enrichment is disabled when
// APIKey is empty.
type GeminiConfig struct {
	APIKey  string        `envconfig:"GEMINI_API_KEY"`
	BaseURL string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta" validate:"url"`
	Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"30s"`
}

// Enabled reports whether enrichment is configured.
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != ""
}

// KafkaConfig holds prediction event publishing settings. Publishing is
// disabled when no brokers are configured.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"prediction-events" validate:"required"`
}

// Enabled reports whether event publishing is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// PubSubConfig holds worker job subscription settings.
type PubSubConfig struct {
	ProjectID      string `envconfig:"PUBSUB_PROJECT_ID"`
	Subscription   string `envconfig:"PUBSUB_SUBSCRIPTION" default:"prediction-jobs" validate:"required"`
	MaxOutstanding int    `envconfig:"PUBSUB_MAX_OUTSTANDING" default:"10" validate:"min=1"`
	MaxAttempts    int    `envconfig:"PUBSUB_MAX_DELIVERY_ATTEMPTS" default:"5" validate:"min=0"`
}

// Enabled reports whether the worker should subscribe to jobs.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != ""
}

// BatchConfig holds the scheduled site batch settings.
type BatchConfig struct {
	Sites       worker.SiteList `envconfig:"BATCH_SITES"`
	Interval    time.Duration   `envconfig:"BATCH_INTERVAL" default:"1h" validate:"min=1m"`
	Concurrency int             `envconfig:"BATCH_CONCURRENCY" default:"3" validate:"min=1,max=32"`
	Timeout     time.Duration   `envconfig:"BATCH_TIMEOUT" default:"30s"`
}

// AuthConfig holds bearer token settings for the history endpoints.
type AuthConfig struct {
	SigningKey string `envconfig:"JWT_SIGNING_KEY" default:"local-dev-signing-key-change-in-production" validate:"min=16"`
	Issuer     string `envconfig:"JWT_ISSUER" default:"terracast"`
	Audience   string `envconfig:"JWT_AUDIENCE" default:"terracast-api"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_TRACES_SAMPLER_RATIO" default:"1" validate:"gte=0,lte=1"`
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
