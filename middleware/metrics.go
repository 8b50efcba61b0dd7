package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for goalpace metrics.
const meterName = "github.com/xraph/goalpace"

// Metrics returns middleware that records per-run metrics using the global
// OTel MeterProvider. If no MeterProvider is configured, noop instruments
// are used and this middleware becomes a pass-through.
//
// Instruments:
//   - goalpace.job.duration (Float64Histogram): run time in seconds,
//     with attributes: job_name, status ("ok" or "error")
//   - goalpace.job.runs (Int64Counter): total runs,
//     with attributes: job_name, status ("ok" or "error")
//   - goalpace.job.lease_headroom (Float64Histogram): seconds left on the
//     lease when a leased run finishes, negative once it overran,
//     with attributes: job_name, holder
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"goalpace.job.duration",
		metric.WithDescription("Duration of scheduled job runs in seconds"),
		metric.WithUnit("s"),
	)

	runs, _ := meter.Int64Counter(
		"goalpace.job.runs",
		metric.WithDescription("Total number of scheduled job runs"),
		metric.WithUnit("{run}"),
	)

	headroom, _ := meter.Float64Histogram(
		"goalpace.job.lease_headroom",
		metric.WithDescription("Lease time remaining when a scheduled job run finishes"),
		metric.WithUnit("s"),
	)

	return func(ctx context.Context, r *Run, next Handler) error {
		start := time.Now()
		err := next(ctx)
		end := time.Now()
		elapsed := end.Sub(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_name", r.Job),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		runs.Add(ctx, 1, attrs)

		if !r.LeaseExpiresAt.IsZero() {
			headroom.Record(ctx, r.LeaseExpiresAt.Sub(end).Seconds(), metric.WithAttributes(
				attribute.String("job_name", r.Job),
				attribute.String("holder", r.Holder),
			))
		}

		return err
	}
}
