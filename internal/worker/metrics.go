package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "terracast_worker"

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Metrics holds the Prometheus collectors for the worker.
type Metrics struct {
	JobsProcessed      *prometheus.CounterVec   // labels: job_type, outcome
	Predictions        *prometheus.CounterVec   // labels: kind, outcome
	PredictionDuration *prometheus.HistogramVec // labels: kind
	BatchRuns          prometheus.Counter
	BatchDuration      prometheus.Histogram
	BatchSitesFailed   prometheus.Gauge
	LastBatchCompleted prometheus.Gauge
}

// NewMetrics creates the worker metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_processed_total",
			Help:      "Pub/Sub jobs processed by type and outcome.",
		}, []string{"job_type", "outcome"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "predictions_total",
			Help:      "Predictions run by kind and outcome.",
		}, []string{"kind", "outcome"}),
		PredictionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "prediction_duration_seconds",
			Help:      "Duration of a single prediction including upstream calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		BatchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batch_runs_total",
			Help:      "Scheduled site batches started.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete site batch.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BatchSitesFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "batch_sites_failed",
			Help:      "Sites that failed in the most recent batch.",
		}),
		LastBatchCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_batch_completed_timestamp_seconds",
			Help:      "Unix time the most recent batch finished.",
		}),
	}

	reg.MustRegister(
		m.JobsProcessed,
		m.Predictions,
		m.PredictionDuration,
		m.BatchRuns,
		m.BatchDuration,
		m.BatchSitesFailed,
		m.LastBatchCompleted,
	)

	return m
}
