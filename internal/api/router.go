// Package api provides the HTTP API for Terracast.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/api/handler"
	"github.com/terracast/terracast/internal/api/middleware"
	"github.com/terracast/terracast/internal/api/response"
	"github.com/terracast/terracast/internal/auth"
	"github.com/terracast/terracast/internal/warehouse"
)

// DefaultServiceName names the API in traces and logs.
const DefaultServiceName = "terracast-api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Predictor  handler.Predictor
	Repository warehouse.Repository

	// Authorizer validates bearer tokens on the history endpoints. Without
	// one the history endpoints are not mounted.
	Authorizer middleware.TokenAuthorizer

	Providers handler.ProviderHealth
	Models    handler.ModelStatus
	Cache     handler.CacheReporter

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	// PredictionRateLimit overrides middleware.PredictionRateLimit.
	PredictionRateLimit *middleware.RateLimitConfig

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Models:    cfg.Models,
		Cache:     cfg.Cache,
	})

	predictionLimit := middleware.PredictionRateLimit
	if cfg.PredictionRateLimit != nil {
		predictionLimit = *cfg.PredictionRateLimit
	}
	predictionRateLimit := middleware.RateLimitByIP(predictionLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Get("/health", opsHandler.HealthCheck)

	if cfg.Predictor != nil {
		predictionHandler := handler.NewPredictionHandler(cfg.Predictor, cfg.Logger)

		// Original single-purpose endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireJSON, predictionRateLimit)
			r.Post("/crops_info", predictionHandler.PredictCrops)
			r.Post("/power", predictionHandler.PredictPower)
			r.Post("/air_quality", predictionHandler.PredictAirQuality)
		})

		r.Route("/v1/predictions", func(r chi.Router) {
			r.Use(middleware.RequireJSON, predictionRateLimit)
			r.Post("/crops", predictionHandler.PredictCrops)
			r.Post("/power", predictionHandler.PredictPower)
			r.Post("/air-quality", predictionHandler.PredictAirQuality)
		})

		r.With(standardRateLimit).Get("/v1/features", predictionHandler.GetFeatures)
	}

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	if cfg.Repository != nil && cfg.Authorizer != nil {
		historyHandler := handler.NewHistoryHandler(cfg.Repository, cfg.Logger)
		r.Route("/v1/history", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Authorizer, auth.ScopeHistoryRead))
			r.Use(middleware.RateLimitBySubject(middleware.StandardRateLimit))
			r.Get("/{kind}", historyHandler.ListHistory)
		})
	}

	return r
}
