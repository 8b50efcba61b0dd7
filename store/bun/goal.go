package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
)

// CreateGoal persists a new goal.
func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) error {
	if g.CreatedAt.IsZero() {
		g.Entity = goalpace.NewEntity()
	}
	_, err := s.db.NewInsert().Model(toGoalModel(g)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return goalpace.ErrDuplicateGoal
		}
		return fmt.Errorf("goalpace/bun: create goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(ctx context.Context, goalID id.GoalID) (*goal.Goal, error) {
	m := new(goalModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", goalID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goalpace/bun: get goal: %w", err)
	}
	return fromGoalModel(m)
}

// ListActiveAutoCalculated returns active auto-calculated goals ordered by
// creation time.
func (s *Store) ListActiveAutoCalculated(ctx context.Context) ([]*goal.Goal, error) {
	var models []goalModel
	err := s.db.NewSelect().Model(&models).
		Where("status = ?", string(goal.StatusActive)).
		Where("auto_calculated = TRUE").
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("goalpace/bun: list goals: %w", err)
	}

	goals := make([]*goal.Goal, 0, len(models))
	for i := range models {
		g, convErr := fromGoalModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// UpdateComputedFields stores a recalculated progress value.
func (s *Store) UpdateComputedFields(ctx context.Context, goalID id.GoalID, progress, percentage float64, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*goalModel)(nil)).
		Set("progress = ?", progress).
		Set("progress_percentage = ?", percentage).
		Set("last_calculated_at = ?", at).
		Set("calculation_failed = FALSE").
		Set("manual_override_reason = ''").
		Set("updated_at = ?", at).
		Where("id = ?", goalID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("goalpace/bun: update computed fields: %w", err)
	}
	return goalRowsAffected(res)
}

// ApplyManualProgress records a hand-entered progress value.
func (s *Store) ApplyManualProgress(ctx context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*goalModel)(nil)).
		Set("progress = ?", progress).
		Set("progress_percentage = ?", percentage).
		Set("auto_calculated = FALSE").
		Set("manual_override_reason = ?", reason).
		Set("last_calculated_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", goalID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("goalpace/bun: apply manual progress: %w", err)
	}
	return goalRowsAffected(res)
}

// MarkCalculationFailed flags a goal whose metric query failed.
func (s *Store) MarkCalculationFailed(ctx context.Context, goalID id.GoalID, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*goalModel)(nil)).
		Set("calculation_failed = TRUE").
		Set("last_calculated_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", goalID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("goalpace/bun: mark calculation failed: %w", err)
	}
	return goalRowsAffected(res)
}

func goalRowsAffected(res interface{ RowsAffected() (int64, error) }) error {
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return goalpace.ErrGoalNotFound
	}
	return nil
}
