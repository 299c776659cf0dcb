package model

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/terracast/terracast/internal/apperr"
)

// LoadResult records whether a model was available at startup.
type LoadResult struct {
	Name      string
	Err       error
	CheckedAt time.Time
}

// Loaded reports whether the model can be used.
func (r LoadResult) Loaded() bool {
	return r.Err == nil
}

// Registry owns the model clients and their startup load results. It is
// built once by Load and read-only afterwards.
type Registry struct {
	clients map[string]*Client
	results map[string]LoadResult
}

// RegistryConfig holds configuration for Load.
type RegistryConfig struct {
	Clients []*Client
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// Load probes every model once, concurrently. A model that fails the probe
// stays registered with its error and is never retried; asking for it
// yields an Unavailable error.
func Load(ctx context.Context, cfg RegistryConfig) *Registry {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	results := make([]LoadResult, len(cfg.Clients))

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range cfg.Clients {
		g.Go(func() error {
			err := client.Probe(gctx)
			results[i] = LoadResult{Name: client.Name(), Err: err, CheckedAt: clock.Now()}
			return nil
		})
	}
	_ = g.Wait()

	r := &Registry{
		clients: make(map[string]*Client, len(cfg.Clients)),
		results: make(map[string]LoadResult, len(cfg.Clients)),
	}
	for i, client := range cfg.Clients {
		res := results[i]
		r.clients[client.Name()] = client
		r.results[client.Name()] = res

		if res.Err != nil {
			cfg.Logger.Error().Err(res.Err).Str("model", res.Name).Msg("model unavailable")
		} else {
			cfg.Logger.Info().Str("model", res.Name).Msg("model loaded")
		}
	}

	return r
}

// Classifier returns the named model as a Classifier.
func (r *Registry) Classifier(name string) (Classifier, error) {
	c, err := r.get(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Regressor returns the named model as a Regressor.
func (r *Registry) Regressor(name string) (Regressor, error) {
	c, err := r.get(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) get(name string) (*Client, error) {
	op := "model." + name

	res, ok := r.results[name]
	if !ok {
		return nil, apperr.Unavailable(op, fmt.Errorf("%w: %s is not configured", ErrNotLoaded, name))
	}
	if res.Err != nil {
		return nil, apperr.Unavailable(op, res.Err)
	}
	return r.clients[name], nil
}

// Results returns the load results sorted by model name.
func (r *Registry) Results() []LoadResult {
	out := make([]LoadResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ready reports whether every registered model loaded.
func (r *Registry) Ready() bool {
	for _, res := range r.results {
		if res.Err != nil {
			return false
		}
	}
	return len(r.results) > 0
}
