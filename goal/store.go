package goal

import (
	"context"
	"time"

	"github.com/xraph/goalpace/id"
)

// Store defines the persistence contract for goals.
type Store interface {
	// CreateGoal persists a new goal. Returns goalpace.ErrDuplicateGoal if
	// the ID is taken.
	CreateGoal(ctx context.Context, g *Goal) error

	// GetGoal retrieves a goal by ID. Returns goalpace.ErrGoalNotFound if
	// missing.
	GetGoal(ctx context.Context, goalID id.GoalID) (*Goal, error)

	// ListActiveAutoCalculated returns goals with status active and
	// auto-calculation enabled.
	ListActiveAutoCalculated(ctx context.Context) ([]*Goal, error)

	// UpdateComputedFields stores a freshly calculated progress value,
	// stamps LastCalculatedAt and clears CalculationFailed and
	// ManualOverrideReason.
	UpdateComputedFields(ctx context.Context, goalID id.GoalID, progress, percentage float64, at time.Time) error

	// ApplyManualProgress overrides progress by hand. The goal stops being
	// auto-calculated and reason is recorded as ManualOverrideReason.
	ApplyManualProgress(ctx context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error

	// MarkCalculationFailed flags the goal after a metric query failed.
	MarkCalculationFailed(ctx context.Context, goalID id.GoalID, at time.Time) error
}
