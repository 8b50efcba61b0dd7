package ext

import (
	"context"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Goal lifecycle hooks
// ──────────────────────────────────────────────────

// SnapshotCreated is called after a snapshot is persisted.
type SnapshotCreated interface {
	OnSnapshotCreated(ctx context.Context, s *snapshot.Snapshot) error
}

// GoalRecalculated is called after a goal's computed fields are stored.
type GoalRecalculated interface {
	OnGoalRecalculated(ctx context.Context, g *goal.Goal, previousPercentage float64) error
}

// GoalCalculationFailed is called when a goal could not be recalculated.
type GoalCalculationFailed interface {
	OnGoalCalculationFailed(ctx context.Context, goalID id.GoalID, err error) error
}

// ──────────────────────────────────────────────────
// Scheduler hooks
// ──────────────────────────────────────────────────

// RunCompleted is called after a scheduled job activation finishes.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, report goalpace.RunReport) error
}

// RunFailed is called when a scheduled job activation returns an error.
type RunFailed interface {
	OnRunFailed(ctx context.Context, jobName string, err error) error
}

// LockDenied is called when an activation was skipped because another
// holder owns the job lock.
type LockDenied interface {
	OnLockDenied(ctx context.Context, jobName, holder string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
