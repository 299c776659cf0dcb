package worker_test

import (
	"context"
	"sync"

	"github.com/terracast/terracast/internal/prediction"
	"github.com/terracast/terracast/internal/worker"
)

type call struct {
	kind worker.Kind
	lat  float64
	lon  float64
	opts prediction.Options
}

type fakePredictor struct {
	mu    sync.Mutex
	calls []call
	errs  map[worker.Kind]error

	// failAt makes every prediction at this latitude fail.
	failAt *float64
}

func (p *fakePredictor) record(kind worker.Kind, lat, lon float64, opts prediction.Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{kind: kind, lat: lat, lon: lon, opts: opts})
	if p.failAt != nil && *p.failAt == lat {
		return errSiteDown
	}
	return p.errs[kind]
}

func (p *fakePredictor) PredictCrops(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.CropResult, error) {
	if err := p.record(worker.KindCrops, lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.CropResult{}, nil
}

func (p *fakePredictor) PredictPower(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.PowerResult, error) {
	if err := p.record(worker.KindPower, lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.PowerResult{}, nil
}

func (p *fakePredictor) PredictAirQuality(_ context.Context, lat, lon float64, opts prediction.Options) (*prediction.AirQualityResult, error) {
	if err := p.record(worker.KindAirQuality, lat, lon, opts); err != nil {
		return nil, err
	}
	return &prediction.AirQualityResult{}, nil
}

func (p *fakePredictor) Calls() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]call, len(p.calls))
	copy(out, p.calls)
	return out
}
