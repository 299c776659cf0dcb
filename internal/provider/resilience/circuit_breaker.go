package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Breaker defaults shared by every upstream (weather provider, model
// servers, enrichment).
const (
	DefaultTripMinRequests  uint32  = 5
	DefaultTripFailureRatio float64 = 0.5
	DefaultOpenTimeout              = 60 * time.Second
	DefaultHalfOpenProbes   uint32  = 1
)

// CircuitBreakerConfig configures the breaker guarding one upstream.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero keeps
	// counting until the breaker changes state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ReadyToTrip decides when a closed breaker opens. Nil means
	// TripOnFailureRatio(DefaultTripMinRequests, DefaultTripFailureRatio).
	ReadyToTrip func(counts gobreaker.Counts) bool

	// Logger receives state transitions. Nil disables logging.
	Logger *zerolog.Logger

	// OnStateChange runs after the transition has been logged.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for every
// upstream unless a client overrides them.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: DefaultHalfOpenProbes,
		Timeout:     DefaultOpenTimeout,
		ReadyToTrip: TripOnFailureRatio(DefaultTripMinRequests, DefaultTripFailureRatio),
	}
}

// TripOnFailureRatio opens the breaker once at least minRequests have been
// seen and the failed share reaches ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// countsAsSuccess keeps caller cancellations from being charged to the
// upstream. Deadline overruns still count as failures.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker builds a gobreaker breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = TripOnFailureRatio(DefaultTripMinRequests, DefaultTripFailureRatio)
	}

	logger := cfg.Logger
	onChange := cfg.OnStateChange

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  readyToTrip,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				event := logger.Info()
				if to == gobreaker.StateOpen {
					event = logger.Warn()
				}
				event.
					Str("provider", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			}
			if onChange != nil {
				onChange(name, from, to)
			}
		},
	})
}
