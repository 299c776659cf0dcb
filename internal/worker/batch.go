package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/prediction"
)

// BatchConfig holds configuration for the site batch job.
type BatchConfig struct {
	// Sites are the locations to predict for.
	Sites []Site

	// Kinds are the predictions to run per site.
	// Default: AllKinds
	Kinds []Kind

	// Concurrency is the number of sites processed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the predictions of a single site.
	// Default: 30 seconds
	Timeout time.Duration

	// Options apply to every prediction in the batch.
	Options prediction.Options
}

// BatchJob runs predictions for a fixed set of sites with a bounded pool.
type BatchJob struct {
	config BatchConfig
	runner *runner
	clock  clockwork.Clock
	logger zerolog.Logger

	metrics *Metrics

	mu         sync.RWMutex
	lastResult *BatchResult
}

// BatchJobConfig holds the collaborators of a BatchJob.
type BatchJobConfig struct {
	Config    BatchConfig
	Predictor Predictor
	Metrics   *Metrics
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

// NewBatchJob creates a batch job.
func NewBatchJob(cfg BatchJobConfig) *BatchJob {
	config := cfg.Config
	if len(config.Kinds) == 0 {
		config.Kinds = AllKinds
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &BatchJob{
		config:  config,
		runner:  &runner{predictor: cfg.Predictor, metrics: cfg.Metrics, clock: clock},
		clock:   clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	Duration   Duration     `json:"duration"`
	TotalSites int          `json:"total_sites"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors,omitempty"`
}

// Duration encodes as a Go duration string.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// BatchError is a failed prediction for one site.
type BatchError struct {
	Site  string `json:"site"`
	Kind  Kind   `json:"kind"`
	Error string `json:"error"`
}

// Sites returns the configured sites.
func (j *BatchJob) Sites() []Site {
	return j.config.Sites
}

// Run predicts every configured kind for every site. A site counts as
// failed when any of its predictions fails.
func (j *BatchJob) Run(ctx context.Context) *BatchResult {
	start := j.clock.Now()
	result := &BatchResult{
		StartTime:  start,
		TotalSites: len(j.config.Sites),
	}

	if j.metrics != nil {
		j.metrics.BatchRuns.Inc()
	}

	j.logger.Info().
		Int("total_sites", result.TotalSites).
		Int("concurrency", j.config.Concurrency).
		Msg("starting site batch")

	sites := make(chan Site, len(j.config.Sites))
	results := make(chan siteResult, len(j.config.Sites))

	var wg sync.WaitGroup
	for range j.config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.siteWorker(ctx, sites, results)
		}()
	}

	for _, s := range j.config.Sites {
		sites <- s
	}
	close(sites)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		if len(sr.errors) == 0 {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, sr.errors...)
		}
	}

	result.EndTime = j.clock.Now()
	result.Duration = Duration(result.EndTime.Sub(start))

	if j.metrics != nil {
		j.metrics.BatchDuration.Observe(time.Duration(result.Duration).Seconds())
		j.metrics.BatchSitesFailed.Set(float64(result.Failed))
		j.metrics.LastBatchCompleted.Set(float64(result.EndTime.Unix()))
	}

	j.mu.Lock()
	j.lastResult = result
	j.mu.Unlock()

	j.logger.Info().
		Dur("duration", time.Duration(result.Duration)).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("site batch completed")

	return result
}

// LastResult returns the most recent batch result, or nil before the first run.
func (j *BatchJob) LastResult() *BatchResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastResult
}

type siteResult struct {
	site   Site
	errors []BatchError
}

func (j *BatchJob) siteWorker(ctx context.Context, sites <-chan Site, results chan<- siteResult) {
	for site := range sites {
		if ctx.Err() != nil {
			results <- siteResult{site: site, errors: []BatchError{{
				Site:  site.Name,
				Error: ctx.Err().Error(),
			}}}
			continue
		}
		results <- j.runSite(ctx, site)
	}
}

func (j *BatchJob) runSite(ctx context.Context, site Site) siteResult {
	result := siteResult{site: site}

	siteCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	for _, kind := range j.config.Kinds {
		if err := j.runner.run(siteCtx, kind, site.Lat, site.Lon, j.config.Options); err != nil {
			j.logger.Warn().Err(err).
				Str("site", site.Name).
				Str("kind", string(kind)).
				Msg("site prediction failed")
			result.errors = append(result.errors, BatchError{
				Site:  site.Name,
				Kind:  kind,
				Error: err.Error(),
			})
		}
	}

	return result
}
