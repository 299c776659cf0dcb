package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

const defaultBatchInterval = time.Hour

// Scheduler runs the site batch periodically.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *BatchJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. A non-positive interval
// defaults to one hour.
func NewScheduler(job *BatchJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultBatchInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the batch and starts the scheduler. The first run happens
// one interval after start. Runs never overlap. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.job.Sites()) == 0 {
		s.logger.Info().Msg("no batch sites configured; scheduler idle")
		return nil
	}

	_, err := s.scheduler.
		Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(func() {
			if ctx.Err() != nil {
				return
			}
			s.job.Run(ctx)
		})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	s.logger.Info().
		Dur("interval", s.interval).
		Int("sites", len(s.job.Sites())).
		Msg("site batch scheduled")
	return nil
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

// Stop stops the scheduler and cancels future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
