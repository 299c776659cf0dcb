// Package handler provides the HTTP handlers of the Terracast API.
package handler

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/api/response"
	"github.com/terracast/terracast/internal/model"
	"github.com/terracast/terracast/internal/provider/resilience"
	"github.com/terracast/terracast/internal/weather"
)

// ProviderHealth reports the circuit state of every upstream.
type ProviderHealth interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// ModelStatus reports the startup load results of the models.
type ModelStatus interface {
	Results() []model.LoadResult
	Ready() bool
}

// CacheReporter describes the weather cache.
type CacheReporter interface {
	CacheStats() weather.CacheStats
}

// OpsConfig holds the dependencies of an OpsHandler. Every reporter is
// optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Providers ProviderHealth
	Models    ModelStatus
	Cache     CacheReporter
	Clock     clockwork.Clock
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	providers ProviderHealth
	models    ModelStatus
	cache     CacheReporter
	clock     clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		providers: cfg.Providers,
		models:    cfg.Models,
		cache:     cfg.Cache,
		clock:     cfg.Clock,
	}
}

// HealthCheck handles GET /health and GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once every
// model loaded at startup.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.models != nil && !h.models.Ready() {
		response.ServiceUnavailable(w, r, "one or more models failed to load")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - upstream, model and cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.clock.Now()),
		Providers: []models.ProviderStatus{},
		Models:    []models.ModelStatus{},
	}

	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			ps := providerStatus(p)
			status.Providers = append(status.Providers, ps)
			status.Status = worst(status.Status, ps.Status)
		}
	}

	if h.models != nil {
		for _, res := range h.models.Results() {
			ms := models.ModelStatus{
				Name:      res.Name,
				Status:    models.HealthStatusOK,
				CheckedAt: models.Timestamp(res.CheckedAt),
			}
			if res.Err != nil {
				msg := res.Err.Error()
				ms.Status = models.HealthStatusFail
				ms.Message = &msg
				// A missing model degrades one prediction kind, not the service.
				status.Status = worst(status.Status, models.HealthStatusDegraded)
			}
			status.Models = append(status.Models, ms)
		}
	}

	if h.cache != nil {
		stats := h.cache.CacheStats()
		status.Cache = &models.CacheStatus{
			Provider:     stats.Provider,
			Entries:      stats.Entries,
			FreshEntries: stats.FreshEntries,
			Hits:         stats.Hits,
			Misses:       stats.Misses,
			StaleServed:  stats.StaleServed,
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      p.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  p.CircuitState.String(),
		LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(p.LastFailureAt),
	}
	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

var statusRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
