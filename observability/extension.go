package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// meterName is the instrumentation scope name for goalpace metrics.
const meterName = "github.com/xraph/goalpace/observability"

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.SnapshotCreated       = (*MetricsExtension)(nil)
	_ ext.GoalRecalculated      = (*MetricsExtension)(nil)
	_ ext.GoalCalculationFailed = (*MetricsExtension)(nil)
	_ ext.RunCompleted          = (*MetricsExtension)(nil)
	_ ext.RunFailed             = (*MetricsExtension)(nil)
	_ ext.LockDenied            = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics through an OTel
// meter. Register it as an extension to track snapshot writes,
// recalculations, failures, lock contention and run outcomes.
type MetricsExtension struct {
	SnapshotsCreated   metric.Int64Counter
	GoalsRecalculated  metric.Int64Counter
	CalculationsFailed metric.Int64Counter
	RunsCompleted      metric.Int64Counter
	RunsFailed         metric.Int64Counter
	LockDenials        metric.Int64Counter
	GoalsProcessed     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on the provided
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		SnapshotsCreated:   counter("goalpace.snapshot.created", "Progress snapshots appended"),
		GoalsRecalculated:  counter("goalpace.goal.recalculated", "Goals recalculated from their metric"),
		CalculationsFailed: counter("goalpace.goal.calculation_failed", "Goal recalculations that failed"),
		RunsCompleted:      counter("goalpace.run.completed", "Scheduled job runs that finished"),
		RunsFailed:         counter("goalpace.run.failed", "Scheduled job runs that returned an error"),
		LockDenials:        counter("goalpace.lock.denied", "Activations skipped because another holder owned the lock"),
		GoalsProcessed:     counter("goalpace.run.goals", "Goals considered by scheduled runs, by outcome"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Goal lifecycle hooks ────────────────────────────

// OnSnapshotCreated implements ext.SnapshotCreated.
func (m *MetricsExtension) OnSnapshotCreated(ctx context.Context, s *snapshot.Snapshot) error {
	m.SnapshotsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(s.Source))))
	return nil
}

// OnGoalRecalculated implements ext.GoalRecalculated.
func (m *MetricsExtension) OnGoalRecalculated(ctx context.Context, g *goal.Goal, _ float64) error {
	m.GoalsRecalculated.Add(ctx, 1, metric.WithAttributes(attribute.String("metric", string(g.Metric))))
	return nil
}

// OnGoalCalculationFailed implements ext.GoalCalculationFailed.
func (m *MetricsExtension) OnGoalCalculationFailed(ctx context.Context, _ id.GoalID, _ error) error {
	m.CalculationsFailed.Add(ctx, 1)
	return nil
}

// ── Scheduler hooks ─────────────────────────────────

// OnRunCompleted implements ext.RunCompleted.
func (m *MetricsExtension) OnRunCompleted(ctx context.Context, r goalpace.RunReport) error {
	job := attribute.String("job_name", r.Job)
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(job))
	m.GoalsProcessed.Add(ctx, int64(r.Processed), metric.WithAttributes(job, attribute.String("outcome", "processed")))
	m.GoalsProcessed.Add(ctx, int64(r.Skipped), metric.WithAttributes(job, attribute.String("outcome", "skipped")))
	m.GoalsProcessed.Add(ctx, int64(r.Failed), metric.WithAttributes(job, attribute.String("outcome", "failed")))
	return nil
}

// OnRunFailed implements ext.RunFailed.
func (m *MetricsExtension) OnRunFailed(ctx context.Context, jobName string, _ error) error {
	m.RunsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", jobName)))
	return nil
}

// OnLockDenied implements ext.LockDenied.
func (m *MetricsExtension) OnLockDenied(ctx context.Context, jobName, _ string) error {
	m.LockDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", jobName)))
	return nil
}
