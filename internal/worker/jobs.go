package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/apperr"
	"github.com/terracast/terracast/internal/prediction"
)

// Job types.
const (
	JobTypePredict = "predict"
	JobTypeBatch   = "batch"
)

// ErrMalformedJob is returned for a job message that can never succeed.
var ErrMalformedJob = errors.New("malformed job message")

// JobMessage is a job received from the queue.
type JobMessage struct {
	JobType        string   `json:"job_type" validate:"required,oneof=predict batch"`
	Kind           Kind     `json:"kind,omitempty" validate:"required_if=JobType predict,omitempty,oneof=crops power air_quality"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	SkipEnrichment bool     `json:"skip_enrichment,omitempty"`
}

// Disposition tells the transport what to do with a processed message.
type Disposition int

const (
	// Ack removes the message.
	Ack Disposition = iota
	// Nack asks for redelivery.
	Nack
)

// JobProcessor decodes and runs job messages independent of the transport.
type JobProcessor struct {
	runner   *runner
	batch    *BatchJob
	validate *validator.Validate
	metrics  *Metrics
	logger   zerolog.Logger
}

// JobProcessorConfig holds the collaborators of a JobProcessor.
type JobProcessorConfig struct {
	Predictor Predictor

	// Batch is optional; batch jobs are acknowledged and skipped without it.
	Batch *BatchJob

	Metrics *Metrics
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// NewJobProcessor creates a job processor.
func NewJobProcessor(cfg JobProcessorConfig) *JobProcessor {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JobProcessor{
		runner:   &runner{predictor: cfg.Predictor, metrics: cfg.Metrics, clock: clock},
		batch:    cfg.Batch,
		validate: validator.New(),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Process runs one raw job message. Messages that can never succeed
// (malformed, invalid input) are acknowledged; upstream failures are
// returned with Nack so the queue redelivers them.
func (p *JobProcessor) Process(ctx context.Context, data []byte) (Disposition, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.observe("unknown", outcomeSkipped)
		return Ack, fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}
	if err := p.validate.Struct(msg); err != nil {
		p.observe(msg.JobType, outcomeSkipped)
		return Ack, fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	switch msg.JobType {
	case JobTypePredict:
		return p.predict(ctx, &msg)
	case JobTypeBatch:
		return p.runBatch(ctx)
	default:
		p.observe(msg.JobType, outcomeSkipped)
		return Ack, fmt.Errorf("%w: job type %q", ErrMalformedJob, msg.JobType)
	}
}

func (p *JobProcessor) predict(ctx context.Context, msg *JobMessage) (Disposition, error) {
	if msg.Lat == nil || msg.Lon == nil {
		p.observe(msg.JobType, outcomeSkipped)
		return Ack, fmt.Errorf("%w: lat and lon are required", ErrMalformedJob)
	}

	opts := prediction.Options{SkipEnrichment: msg.SkipEnrichment}

	err := p.runner.run(ctx, msg.Kind, *msg.Lat, *msg.Lon, opts)
	if err == nil {
		p.observe(msg.JobType, outcomeSuccess)
		return Ack, nil
	}

	p.observe(msg.JobType, outcomeError)
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindComputation:
		return Ack, err
	default:
		return Nack, err
	}
}

func (p *JobProcessor) runBatch(ctx context.Context) (Disposition, error) {
	if p.batch == nil {
		p.observe(JobTypeBatch, outcomeSkipped)
		return Ack, nil
	}

	result := p.batch.Run(ctx)
	if result.Failed > result.Successful {
		p.observe(JobTypeBatch, outcomeError)
		return Nack, fmt.Errorf("too many site failures: %d/%d", result.Failed, result.TotalSites)
	}

	p.observe(JobTypeBatch, outcomeSuccess)
	return Ack, nil
}

func (p *JobProcessor) observe(jobType, outcome string) {
	if p.metrics != nil {
		p.metrics.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
	}
}
