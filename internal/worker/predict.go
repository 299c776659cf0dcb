package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/terracast/terracast/internal/prediction"
)

// ErrUnknownKind is returned for a prediction kind the worker cannot run.
var ErrUnknownKind = errors.New("unknown prediction kind")

// Kind names a prediction the worker can run.
type Kind string

const (
	KindCrops      Kind = "crops"
	KindPower      Kind = "power"
	KindAirQuality Kind = "air_quality"
)

// AllKinds lists every prediction kind in batch order.
var AllKinds = []Kind{KindCrops, KindPower, KindAirQuality}

// Predictor runs predictions. *prediction.Service implements it.
type Predictor interface {
	PredictCrops(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.CropResult, error)
	PredictPower(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.PowerResult, error)
	PredictAirQuality(ctx context.Context, lat, lon float64, opts prediction.Options) (*prediction.AirQualityResult, error)
}

// runner dispatches a kind to the predictor and records metrics.
type runner struct {
	predictor Predictor
	metrics   *Metrics
	clock     clockwork.Clock
}

func (r *runner) run(ctx context.Context, kind Kind, lat, lon float64, opts prediction.Options) error {
	start := r.clock.Now()

	var err error
	switch kind {
	case KindCrops:
		_, err = r.predictor.PredictCrops(ctx, lat, lon, opts)
	case KindPower:
		_, err = r.predictor.PredictPower(ctx, lat, lon, opts)
	case KindAirQuality:
		_, err = r.predictor.PredictAirQuality(ctx, lat, lon, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if r.metrics != nil {
		outcome := outcomeSuccess
		if err != nil {
			outcome = outcomeError
		}
		r.metrics.Predictions.WithLabelValues(string(kind), outcome).Inc()
		r.metrics.PredictionDuration.WithLabelValues(string(kind)).Observe(r.clock.Since(start).Seconds())
	}

	return err
}
