// Package prediction sequences weather retrieval, feature derivation, model
// inference, ranking, enrichment and persistence for each prediction kind.
package prediction

import (
	"context"
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/crop"
	"github.com/terracast/terracast/internal/enrich"
	"github.com/terracast/terracast/internal/events"
	"github.com/terracast/terracast/internal/model"
	"github.com/terracast/terracast/internal/warehouse"
	"github.com/terracast/terracast/internal/weather"
)

const (
	tracerName = "github.com/terracast/terracast/internal/prediction"

	// DefaultPriceDivisor converts the reference price table into the
	// currency the recommendations are quoted in.
	DefaultPriceDivisor = 50.0

	solarStatusSuccess = "success"
)

// WeatherSource supplies current observations.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// Models resolves model capabilities by name.
type Models interface {
	Classifier(name string) (model.Classifier, error)
	Regressor(name string) (model.Regressor, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Weather WeatherSource
	Models  Models
	Stats   *crop.Stats
	Labels  crop.LabelIndex

	// Enricher is optional; without it recommendations carry empty pest
	// and disease lists.
	Enricher enrich.Enricher

	// Repository is optional; without it nothing is persisted.
	Repository warehouse.Repository

	// Publisher is optional; defaults to events.NoopPublisher.
	Publisher events.Publisher

	// PriceDivisor defaults to DefaultPriceDivisor.
	PriceDivisor float64

	// TopK defaults to crop.DefaultTopK.
	TopK int

	Clock  clockwork.Clock
	Tracer trace.Tracer
	Logger zerolog.Logger
}

// Service runs predictions. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	weather      WeatherSource
	models       Models
	stats        *crop.Stats
	labels       crop.LabelIndex
	enricher     enrich.Enricher
	repo         warehouse.Repository
	publisher    events.Publisher
	priceDivisor float64
	topK         int
	clock        clockwork.Clock
	tracer       trace.Tracer
	logger       zerolog.Logger
}

// NewService creates a prediction service.
func NewService(cfg Config) *Service {
	if cfg.PriceDivisor <= 0 {
		cfg.PriceDivisor = DefaultPriceDivisor
	}
	if cfg.TopK <= 0 {
		cfg.TopK = crop.DefaultTopK
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	return &Service{
		weather:      cfg.Weather,
		models:       cfg.Models,
		stats:        cfg.Stats,
		labels:       cfg.Labels,
		enricher:     cfg.Enricher,
		repo:         cfg.Repository,
		publisher:    cfg.Publisher,
		priceDivisor: cfg.PriceDivisor,
		topK:         cfg.TopK,
		clock:        cfg.Clock,
		tracer:       cfg.Tracer,
		logger:       cfg.Logger,
	}
}

// Features fetches the current observation for a location and derives the
// feature vector from it.
func (s *Service) Features(ctx context.Context, lat, lon float64) (*weather.Features, error) {
	ctx, span := s.startSpan(ctx, "prediction.features", lat, lon)
	defer span.End()

	f, err := s.features(ctx, lat, lon)
	return f, recordError(span, err)
}

// PredictCrops recommends crops for a location.
func (s *Service) PredictCrops(ctx context.Context, lat, lon float64, opts Options) (*CropResult, error) {
	ctx, span := s.startSpan(ctx, "prediction.crops", lat, lon)
	defer span.End()

	res, err := s.predictCrops(ctx, lat, lon, opts)
	return res, recordError(span, err)
}

func (s *Service) predictCrops(ctx context.Context, lat, lon float64, opts Options) (*CropResult, error) {
	f, err := s.features(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	classifier, err := s.models.Classifier(model.NameCrop)
	if err != nil {
		return nil, err
	}

	probs, err := classifier.Classify(ctx, f.CropInput())
	if err != nil {
		return nil, apperr.External("model."+model.NameCrop, err)
	}

	recs := crop.Rank(probs, s.labels, s.stats, s.topK)
	for i := range recs {
		recs[i].EstimatedPrice = crop.Round2(recs[i].EstimatedPrice / s.priceDivisor)
	}

	enriched := s.enrich(ctx, recs, opts)

	if !opts.SkipPersistence {
		if err := s.storeCrops(ctx, f, enriched); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("recommendations", len(enriched)).
		Msg("crop prediction completed")

	return &CropResult{Data: enriched}, nil
}

// PredictPower predicts solar and wind power output for a location. The two
// models are queried concurrently.
func (s *Service) PredictPower(ctx context.Context, lat, lon float64, opts Options) (*PowerResult, error) {
	ctx, span := s.startSpan(ctx, "prediction.power", lat, lon)
	defer span.End()

	res, err := s.predictPower(ctx, lat, lon, opts)
	return res, recordError(span, err)
}

func (s *Service) predictPower(ctx context.Context, lat, lon float64, opts Options) (*PowerResult, error) {
	f, err := s.features(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	solarModel, err := s.models.Regressor(model.NameSolar)
	if err != nil {
		return nil, err
	}
	windModel, err := s.models.Regressor(model.NameWind)
	if err != nil {
		return nil, err
	}

	var solarKW, windPower float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := regress(gctx, solarModel, model.NameSolar, f.SolarInput())
		solarKW = v
		return err
	})
	g.Go(func() error {
		v, err := regress(gctx, windModel, model.NameWind, f.WindPowerInput())
		windPower = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &PowerResult{
		Solar: SolarOutput{PredictedPowerKW: solarKW, Status: solarStatusSuccess},
		Wind:  WindOutput{PredictedPower: windPower, Timestamp: f.ObservedAt()},
	}

	if !opts.SkipPersistence {
		if err := s.storePower(ctx, f, res); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("solar_kw", solarKW).
		Float64("wind_power", windPower).
		Msg("power prediction completed")

	return res, nil
}

// PredictAirQuality predicts the air quality index for a location.
func (s *Service) PredictAirQuality(ctx context.Context, lat, lon float64, opts Options) (*AirQualityResult, error) {
	ctx, span := s.startSpan(ctx, "prediction.air_quality", lat, lon)
	defer span.End()

	res, err := s.predictAirQuality(ctx, lat, lon, opts)
	return res, recordError(span, err)
}

func (s *Service) predictAirQuality(ctx context.Context, lat, lon float64, opts Options) (*AirQualityResult, error) {
	f, err := s.features(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	aqiModel, err := s.models.Regressor(model.NameAirQuality)
	if err != nil {
		return nil, err
	}

	input := f.AirQualityInput()
	aqi, err := regress(ctx, aqiModel, model.NameAirQuality, input)
	if err != nil {
		return nil, err
	}

	res := &AirQualityResult{AQI: aqi, Category: CategoryForAQI(aqi)}

	if !opts.SkipPersistence {
		if err := s.storeAirQuality(ctx, f, input, res); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("aqi", aqi).
		Msg("air quality prediction completed")

	return res, nil
}

func (s *Service) features(ctx context.Context, lat, lon float64) (*weather.Features, error) {
	if err := validateLocation(lat, lon); err != nil {
		return nil, err
	}

	obs, err := s.weather.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		return nil, apperr.External("weather.fetch", err)
	}

	return weather.Derive(obs)
}

// enrich never fails the request: on error the plain recommendations are
// returned with empty notes.
func (s *Service) enrich(ctx context.Context, recs []crop.Recommendation, opts Options) []crop.EnrichedRecommendation {
	if s.enricher == nil || opts.SkipEnrichment || len(recs) == 0 {
		return enrich.Passthrough(recs)
	}

	ctx, span := s.tracer.Start(ctx, "prediction.enrich")
	defer span.End()

	enriched, err := s.enricher.Enrich(ctx, recs)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Msg("enrichment failed, returning plain recommendations")
		return enrich.Passthrough(recs)
	}
	return enriched
}

func regress(ctx context.Context, m model.Regressor, name string, input []float64) (float64, error) {
	v, err := m.Regress(ctx, input)
	if err != nil {
		return 0, apperr.External("model."+name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.External("model."+name, fmt.Errorf("%w: non-finite prediction", model.ErrUnexpectedOutput))
	}
	return v, nil
}

func validateLocation(lat, lon float64) error {
	const op = "prediction"
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return apperr.Validation(op, "lat", "latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return apperr.Validation(op, "lon", "longitude must be between -180 and 180")
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, lat, lon float64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Float64("location.lat", lat),
		attribute.Float64("location.lon", lon),
	))
}

func recordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	return err
}
