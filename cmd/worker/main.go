// Package main provides the entrypoint for the Terracast worker. The worker
// runs prediction jobs from Pub/Sub and the scheduled site batch.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/terracast/terracast/internal/api/handler"
	"github.com/terracast/terracast/internal/api/middleware"
	"github.com/terracast/terracast/internal/api/response"
	"github.com/terracast/terracast/internal/app"
	"github.com/terracast/terracast/internal/config"
	"github.com/terracast/terracast/internal/telemetry"
	"github.com/terracast/terracast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "terracast-worker"

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, cfg, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting Terracast worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	stack, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer stack.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := worker.NewMetrics(registry)

	batch := worker.NewBatchJob(worker.BatchJobConfig{
		Config: worker.BatchConfig{
			Sites:       cfg.Batch.Sites,
			Concurrency: cfg.Batch.Concurrency,
			Timeout:     cfg.Batch.Timeout,
		},
		Predictor: stack.Predictions,
		Metrics:   metrics,
		Logger:    log,
	})

	scheduler := worker.NewScheduler(batch, cfg.Batch.Interval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start batch scheduler")
	}
	defer scheduler.Stop()

	processor := worker.NewJobProcessor(worker.JobProcessorConfig{
		Predictor: stack.Predictions,
		Batch:     batch,
		Metrics:   metrics,
		Logger:    log,
	})

	if cfg.PubSub.Enabled() {
		subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:           cfg.PubSub.ProjectID,
			SubscriptionName:    cfg.PubSub.Subscription,
			MaxOutstanding:      cfg.PubSub.MaxOutstanding,
			MaxDeliveryAttempts: cfg.PubSub.MaxAttempts,
			Processor:           processor,
			Logger:              log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer subscriber.Close()

		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set; only the scheduled batch runs")
	}

	servers := []*http.Server{
		{
			Addr:         ":" + cfg.Server.Port,
			Handler:      healthRouter(stack, batch, log),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		{
			Addr:        ":" + cfg.Server.MetricsPort,
			Handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadTimeout: cfg.Server.ReadTimeout,
		},
	}
	for _, srv := range servers {
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", srv.Addr).Msg("server error")
				cancel()
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("server forced to shutdown")
		}
	}

	log.Info().Msg("worker stopped")
}

// healthRouter serves liveness, readiness and the last batch result.
func healthRouter(stack *app.App, batch *worker.BatchJob, log zerolog.Logger) http.Handler {
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Providers: stack.Providers,
		Models:    stack.Models,
		Cache:     stack.Weather,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", ops.HealthCheck)
	r.Get("/v1/ops/ready", ops.ReadinessCheck)
	r.Get("/v1/ops/status", ops.SystemStatus)
	r.Get("/v1/batch/last", func(w http.ResponseWriter, r *http.Request) {
		result := batch.LastResult()
		if result == nil {
			response.NotFound(w, r, "no batch has completed yet")
			return
		}
		response.JSON(w, r, http.StatusOK, result)
	})
	return r
}

func shutdownTelemetry(tp *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown telemetry")
	}
}
