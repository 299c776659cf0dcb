package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/terracast/terracast/internal/api/middleware"

// predictionRoutes maps route patterns to the prediction kind they serve.
// The legacy root paths and the versioned paths count as one series.
var predictionRoutes = map[string]string{
	"/crops_info":                 "crops",
	"/power":                      "power",
	"/air_quality":                "air_quality",
	"/v1/predictions/crops":       "crops",
	"/v1/predictions/power":       "power",
	"/v1/predictions/air-quality": "air_quality",
}

// Metrics holds the HTTP server instruments.
type Metrics struct {
	duration    metric.Float64Histogram
	requests    metric.Int64Counter
	active      metric.Int64UpDownCounter
	bodySize    metric.Int64Histogram
	predictions metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var (
		m    Metrics
		errs []error
		err  error
	)
	m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"), metric.WithUnit("s"))
	errs = append(errs, err)
	m.requests, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests"), metric.WithUnit("{request}"))
	errs = append(errs, err)
	m.active, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP requests in flight"), metric.WithUnit("{request}"))
	errs = append(errs, err)
	m.bodySize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Response body size"), metric.WithUnit("By"))
	errs = append(errs, err)
	m.predictions, err = meter.Int64Counter("terracast.predictions.served",
		metric.WithDescription("Predictions answered successfully, by kind"), metric.WithUnit("{prediction}"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records request metrics labelled by chi route pattern, plus a
// per-kind counter for successful predictions.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			started := time.Now()

			method := attribute.String("http.request.method", r.Method)
			m.active.Add(ctx, 1, metric.WithAttributes(method))
			defer m.active.Add(ctx, -1, metric.WithAttributes(method))

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := routePattern(r)
			attrs := metric.WithAttributes(
				method,
				attribute.String("http.route", route),
				attribute.String("http.response.status_code", strconv.Itoa(rec.statusCode)),
				attribute.Bool("error", rec.statusCode >= http.StatusBadRequest),
			)
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
			m.bodySize.Record(ctx, rec.written, attrs)

			if kind, ok := predictionRoutes[route]; ok && rec.statusCode < http.StatusMultipleChoices {
				m.predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("prediction.kind", kind)))
			}
		})
	}
}
