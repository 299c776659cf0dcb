// Package main provides the entrypoint for the Terracast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/terracast/terracast/internal/api"
	"github.com/terracast/terracast/internal/api/middleware"
	"github.com/terracast/terracast/internal/app"
	"github.com/terracast/terracast/internal/auth"
	"github.com/terracast/terracast/internal/config"
	"github.com/terracast/terracast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "terracast-api"

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting Terracast API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(tp, log)

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	stack, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer stack.Close()

	if cfg.IsProduction() && cfg.Auth.SigningKey == "local-dev-signing-key-change-in-production" {
		log.Fatal().Msg("JWT_SIGNING_KEY must be set in production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Predictor:   stack.Predictions,
		Repository:  stack.Repository,
		Authorizer:  jwtService,
		Providers:   stack.Providers,
		Models:      stack.Models,
		Cache:       stack.Weather,
		CORSOrigins: cfg.Server.CORSOrigins,
		PredictionRateLimit: &middleware.RateLimitConfig{
			RequestLimit: cfg.Server.PredictionRateLimit,
			WindowLength: time.Minute,
		},
		RequireTLS: cfg.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func shutdownTelemetry(tp *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown telemetry")
	}
}
