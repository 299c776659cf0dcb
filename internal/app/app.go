// Package app assembles the prediction stack shared by the API and the
// worker from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/config"
	"github.com/terracast/terracast/internal/crop"
	"github.com/terracast/terracast/internal/database"
	"github.com/terracast/terracast/internal/enrich"
	"github.com/terracast/terracast/internal/events"
	"github.com/terracast/terracast/internal/model"
	"github.com/terracast/terracast/internal/prediction"
	"github.com/terracast/terracast/internal/provider/resilience"
	"github.com/terracast/terracast/internal/warehouse"
	"github.com/terracast/terracast/internal/weather"
	"github.com/terracast/terracast/internal/weather/openweathermap"
)

// App holds the long-lived components of a process.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Providers   *resilience.Registry
	Weather     *weather.Service
	Models      *model.Registry
	Repository  warehouse.Repository
	Publisher   events.Publisher
	Predictions *prediction.Service

	pool *pgxpool.Pool
}

// NewLogger returns the process logger: JSON on w, tagged with the service
// name and version. Development builds log in console format.
func NewLogger(w io.Writer, cfg *config.Config, service, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if cfg.Environment == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// New builds every component. Models are probed once; a model that fails
// the probe is reported and left unavailable rather than failing startup.
// Reference data and database errors do fail startup.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    log,
		Providers: resilience.NewRegistry(),
	}

	stats, err := crop.LoadStats(cfg.Crops.StatsPath)
	if err != nil {
		return nil, fmt.Errorf("loading crop stats: %w", err)
	}
	labels, err := crop.LoadLabelIndex(cfg.Crops.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("loading crop labels: %w", err)
	}
	log.Info().
		Int("crops", stats.Len()).
		Int("labels", len(labels)).
		Msg("crop reference data loaded")

	a.Weather = weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.Weather.APIKey,
			BaseURL:    cfg.Weather.BaseURL,
			HTTPClient: a.httpClient(openweathermap.ProviderName, 0, false),
			Logger:     log,
		}),
		Logger:          log,
		CacheTTL:        cfg.Weather.CacheTTL,
		CacheGridSize:   cfg.Weather.CacheGridSize,
		StaleIfErrorTTL: cfg.Weather.StaleIfErrorTTL,
		FetchTimeout:    cfg.Weather.FetchTimeout,
	})

	a.Models = a.loadModels(ctx)

	var enricher enrich.Enricher
	if cfg.Gemini.Enabled() {
		enricher = enrich.NewClient(enrich.ClientConfig{
			APIKey:     cfg.Gemini.APIKey,
			BaseURL:    cfg.Gemini.BaseURL,
			Model:      cfg.Gemini.Model,
			HTTPClient: a.httpClient(enrich.ProviderName, cfg.Gemini.Timeout, true),
			Logger:     log,
		})
		log.Info().Str("model", cfg.Gemini.Model).Msg("crop enrichment enabled")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set; crop enrichment disabled")
	}

	if err := a.openRepository(ctx); err != nil {
		return nil, err
	}

	if err := a.openPublisher(); err != nil {
		a.Close()
		return nil, err
	}

	a.Predictions = prediction.NewService(prediction.Config{
		Weather:      a.Weather,
		Models:       a.Models,
		Stats:        stats,
		Labels:       labels,
		Enricher:     enricher,
		Repository:   a.Repository,
		Publisher:    a.Publisher,
		PriceDivisor: cfg.Crops.PriceDivisor,
		TopK:         cfg.Crops.TopK,
		Logger:       log,
	})

	return a, nil
}

// Close releases the publisher and the database pool.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) httpClient(name string, timeout time.Duration, singleShot bool) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = a.Providers
	cfg.Logger = a.Logger
	cfg.DisableRetries = singleShot
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return resilience.NewClient(cfg)
}

func (a *App) loadModels(ctx context.Context) *model.Registry {
	cfg := a.Config.Models
	names := []string{model.NameCrop, model.NameSolar, model.NameWind, model.NameAirQuality}

	clients := make([]*model.Client, len(names))
	for i, name := range names {
		clients[i] = model.NewClient(model.ClientConfig{
			Name:       name,
			BaseURL:    cfg.BaseURL,
			Logits:     name == model.NameCrop && cfg.CropLogits,
			HTTPClient: a.httpClient("model-"+name, cfg.Timeout, false),
			Logger:     a.Logger,
		})
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout+5*time.Second)
	defer cancel()

	registry := model.Load(probeCtx, model.RegistryConfig{Clients: clients, Logger: a.Logger})
	if !registry.Ready() {
		a.Logger.Warn().Msg("not every model loaded; affected predictions will be unavailable")
	}
	return registry
}

func (a *App) openRepository(ctx context.Context) error {
	dbCfg := a.Config.Database
	if !dbCfg.Enabled {
		a.Logger.Warn().Msg("database disabled; predictions are kept in memory")
		a.Repository = warehouse.NewInMemoryRepository()
		return nil
	}

	pool, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.pool = pool

	repo := warehouse.NewPostgresRepository(pool)
	if dbCfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrating warehouse: %w", err)
		}
	}
	a.Repository = repo

	a.Logger.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("database connected")
	return nil
}

func (a *App) openPublisher() error {
	kcfg := a.Config.Kafka
	if !kcfg.Enabled() {
		a.Publisher = events.NoopPublisher{}
		return nil
	}

	pub, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: kcfg.Brokers,
		Topic:   kcfg.Topic,
		Logger:  a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating kafka publisher: %w", err)
	}
	a.Publisher = pub

	a.Logger.Info().
		Strs("brokers", kcfg.Brokers).
		Str("topic", kcfg.Topic).
		Msg("prediction events enabled")
	return nil
}
