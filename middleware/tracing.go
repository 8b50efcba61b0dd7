package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for goalpace tracing.
const tracerName = "github.com/xraph/goalpace"

// Tracing returns middleware that wraps a run in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is
// used and this middleware becomes a pass-through.
//
// Span attributes: goalpace.job.name, goalpace.lock.holder,
// goalpace.lock.lease_token and, for leased runs, goalpace.lock.expires_at
// plus goalpace.lock.overran, true when the run ended after its lease expired.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *Run, next Handler) error {
		ctx, span := tracer.Start(ctx, "goalpace.job.run",
			trace.WithAttributes(
				attribute.String("goalpace.job.name", r.Job),
				attribute.String("goalpace.lock.holder", r.Holder),
				attribute.String("goalpace.lock.lease_token", r.LeaseToken),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		if !r.LeaseExpiresAt.IsZero() {
			span.SetAttributes(attribute.String("goalpace.lock.expires_at", r.LeaseExpiresAt.UTC().Format(time.RFC3339Nano)))
		}

		err := next(ctx)
		if !r.LeaseExpiresAt.IsZero() {
			span.SetAttributes(attribute.Bool("goalpace.lock.overran", time.Now().After(r.LeaseExpiresAt)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
