package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/provider/resilience"
)

func newRegisteredClient(registry *resilience.Registry, name string) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegisteredClient(registry, "model-crop")

	assert.Equal(t, 1, registry.ProviderCount())

	health := registry.GetHealth("model-crop")
	require.NotNil(t, health)
	assert.Equal(t, "model-crop", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())

	assert.Equal(t, "model-crop", client.Name())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegisteredClient(registry, "gemini")

	registry.Unregister("gemini")

	assert.Equal(t, 0, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("gemini"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC))
	registry := resilience.NewRegistryWithClock(clock)
	_ = newRegisteredClient(registry, "openweathermap")

	health := registry.GetHealth("openweathermap")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.RecordSuccess("openweathermap")
	clock.Advance(time.Minute)
	registry.RecordFailure("openweathermap", assert.AnError)

	health = registry.GetHealth("openweathermap")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, clock.Now().Add(-time.Minute), *health.LastSuccessAt)
	assert.Equal(t, clock.Now(), *health.LastFailureAt)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
	assert.Equal(t, 1, health.ConsecutiveFailures)

	registry.RecordFailure("openweathermap", nil)
	assert.Equal(t, 2, registry.GetHealth("openweathermap").ConsecutiveFailures)
	assert.Equal(t, assert.AnError.Error(), registry.GetHealth("openweathermap").LastError)

	registry.RecordSuccess("openweathermap")
	assert.Zero(t, registry.GetHealth("openweathermap").ConsecutiveFailures)
}

func TestRegistry_ClientRecordsRequests(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := newRegisteredClient(registry, "model-solar")

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health := registry.GetHealth("model-solar")
	require.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	status.Store(http.StatusBadGateway)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health = registry.GetHealth("model-solar")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Bad Gateway")
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()

	for _, name := range []string{"model-wind", "gemini", "openweathermap"} {
		_ = newRegisteredClient(registry, name)
	}

	healthList := registry.GetAllHealth()
	require.Len(t, healthList, 3)
	assert.Equal(t, "gemini", healthList[0].Name)
	assert.Equal(t, "model-wind", healthList[1].Name)
	assert.Equal(t, "openweathermap", healthList[2].Name)

	assert.Equal(t, []string{"gemini", "model-wind", "openweathermap"}, registry.GetProviderNames())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.Nil(t, registry.GetHealth("nonexistent"))
	assert.Empty(t, registry.GetProviderNames())

	// Should not panic
	registry.RecordSuccess("nonexistent")
	registry.RecordFailure("nonexistent", assert.AnError)
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state      gobreaker.State
		isHealthy  bool
		isDegraded bool
		isUnhealth bool
	}{
		{gobreaker.StateClosed, true, false, false},
		{gobreaker.StateHalfOpen, false, true, false},
		{gobreaker.StateOpen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.isHealthy, h.IsHealthy())
			assert.Equal(t, tt.isDegraded, h.IsDegraded())
			assert.Equal(t, tt.isUnhealth, h.IsUnhealthy())
		})
	}
}
