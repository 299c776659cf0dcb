package resilience_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/provider/resilience"
)

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := resilience.DefaultCircuitBreakerConfig("model-aqi")

	assert.Equal(t, "model-aqi", cfg.Name)
	assert.Equal(t, resilience.DefaultHalfOpenProbes, cfg.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Zero(t, cfg.Interval)
	assert.NotNil(t, cfg.ReadyToTrip)
	assert.Nil(t, cfg.Logger)
}

func TestTripOnFailureRatio(t *testing.T) {
	trip := resilience.TripOnFailureRatio(5, 0.5)

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"no traffic", gobreaker.Counts{}, false},
		{"below minimum", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"minimum reached, all failing", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
		{"under the ratio", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"exactly the ratio", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trip(tt.counts))
		})
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	server, calls := statusSequence(t, 500)

	var buf bytes.Buffer
	var transitions []gobreaker.State

	breaker := resilience.CircuitBreakerConfig{
		Name:        "model-crop",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: resilience.TripOnFailureRatio(3, 0.5),
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	}
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "model-crop",
		DisableRetries: true,
		CircuitBreaker: &breaker,
		Logger:         zerolog.New(&buf),
	})

	for i := 0; i < 3; i++ {
		resp, err := get(t, context.Background(), client, server.URL)
		require.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)
	}

	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"provider":"model-crop"`)
	assert.Contains(t, buf.String(), `"to":"open"`)

	_, err := get(t, context.Background(), client, server.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load(), "open circuit must not reach the upstream")
}

func TestNewCircuitBreaker_NilTripUsesDefault(t *testing.T) {
	cb := resilience.NewCircuitBreaker[int](resilience.CircuitBreakerConfig{Name: "gemini", Timeout: time.Minute})

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, assert.AnError })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	_, _ = cb.Execute(func() (int, error) { return 0, assert.AnError })
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestNewCircuitBreaker_CanceledIsNotFailure(t *testing.T) {
	cb := resilience.NewCircuitBreaker[int](resilience.CircuitBreakerConfig{
		Name:        "openweathermap",
		ReadyToTrip: resilience.TripOnFailureRatio(1, 0.1),
	})

	_, err := cb.Execute(func() (int, error) { return 0, context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().TotalSuccesses)

	_, _ = cb.Execute(func() (int, error) { return 0, context.DeadlineExceeded })
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
