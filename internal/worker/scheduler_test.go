package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracast/terracast/internal/worker"
)

func TestScheduler_NoSites(t *testing.T) {
	job := worker.NewBatchJob(worker.BatchJobConfig{Predictor: &fakePredictor{}, Logger: zerolog.Nop()})
	s := worker.NewScheduler(job, time.Minute, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	assert.Zero(t, s.Jobs())
	s.Stop()
}

func TestScheduler_SchedulesBatch(t *testing.T) {
	predictor := &fakePredictor{}
	job := worker.NewBatchJob(worker.BatchJobConfig{
		Config:    worker.BatchConfig{Sites: testSites()},
		Predictor: predictor,
		Logger:    zerolog.Nop(),
	})
	s := worker.NewScheduler(job, time.Hour, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 1, s.Jobs())
	// The first run waits for the schedule.
	assert.Empty(t, predictor.Calls())
}
