// Package observability provides an OpenTelemetry metrics extension for
// goalpace. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for snapshots, recalculations, calculation
// failures, lock denials and scheduled runs.
//
// For per-run tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
