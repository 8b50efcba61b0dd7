package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
)

const goalColumns = `id, name, owner_type, owner_id, metric, target_value,
	progress, progress_percentage, start_date, end_date, status,
	auto_calculated, last_calculated_at, calculation_failed,
	manual_override_reason, created_at, updated_at`

// CreateGoal persists a new goal.
func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) error {
	if g.CreatedAt.IsZero() {
		g.Entity = goalpace.NewEntity()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO goalpace_goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		g.ID.String(), g.Name, string(g.OwnerType), g.OwnerID, string(g.Metric), g.TargetValue,
		g.Progress, g.ProgressPercentage, nullTime(g.StartDate), nullTime(g.EndDate), string(g.Status),
		g.AutoCalculated, g.LastCalculatedAt, g.CalculationFailed,
		g.ManualOverrideReason, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return goalpace.ErrDuplicateGoal
		}
		return fmt.Errorf("goalpace/postgres: create goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(ctx context.Context, goalID id.GoalID) (*goal.Goal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goalpace_goals WHERE id = $1`,
		goalID.String(),
	)
	g, err := scanGoal(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goalpace/postgres: get goal: %w", err)
	}
	return g, nil
}

// ListActiveAutoCalculated returns active auto-calculated goals ordered by
// creation time.
func (s *Store) ListActiveAutoCalculated(ctx context.Context) ([]*goal.Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+goalColumns+` FROM goalpace_goals
		WHERE status = 'active' AND auto_calculated
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("goalpace/postgres: list goals: %w", err)
	}
	defer rows.Close()

	var goals []*goal.Goal
	for rows.Next() {
		g, scanErr := scanGoal(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("goalpace/postgres: scan goal: %w", scanErr)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goalpace/postgres: list goals: %w", err)
	}
	return goals, nil
}

// UpdateComputedFields stores a recalculated progress value.
func (s *Store) UpdateComputedFields(ctx context.Context, goalID id.GoalID, progress, percentage float64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE goalpace_goals
		SET progress = $2, progress_percentage = $3, last_calculated_at = $4,
		    calculation_failed = FALSE, manual_override_reason = '', updated_at = $4
		WHERE id = $1`,
		goalID.String(), progress, percentage, at,
	)
	if err != nil {
		return fmt.Errorf("goalpace/postgres: update computed fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goalpace.ErrGoalNotFound
	}
	return nil
}

// ApplyManualProgress records a hand-entered progress value.
func (s *Store) ApplyManualProgress(ctx context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE goalpace_goals
		SET progress = $2, progress_percentage = $3, auto_calculated = FALSE,
		    manual_override_reason = $4, last_calculated_at = $5, updated_at = $5
		WHERE id = $1`,
		goalID.String(), progress, percentage, reason, at,
	)
	if err != nil {
		return fmt.Errorf("goalpace/postgres: apply manual progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goalpace.ErrGoalNotFound
	}
	return nil
}

// MarkCalculationFailed flags a goal whose metric query failed.
func (s *Store) MarkCalculationFailed(ctx context.Context, goalID id.GoalID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE goalpace_goals
		SET calculation_failed = TRUE, last_calculated_at = $2, updated_at = $2
		WHERE id = $1`,
		goalID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("goalpace/postgres: mark calculation failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goalpace.ErrGoalNotFound
	}
	return nil
}

func scanGoal(row pgx.Row) (*goal.Goal, error) {
	var (
		g                  goal.Goal
		rawID              string
		ownerType, metric  string
		status             string
		startDate, endDate *time.Time
	)
	err := row.Scan(
		&rawID, &g.Name, &ownerType, &g.OwnerID, &metric, &g.TargetValue,
		&g.Progress, &g.ProgressPercentage, &startDate, &endDate, &status,
		&g.AutoCalculated, &g.LastCalculatedAt, &g.CalculationFailed,
		&g.ManualOverrideReason, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseGoalID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse goal id %q: %w", rawID, err)
	}
	g.ID = parsed
	g.OwnerType = goal.OwnerType(ownerType)
	g.Metric = goal.MetricType(metric)
	g.Status = goal.Status(status)
	g.StartDate = fromNullTime(startDate)
	g.EndDate = fromNullTime(endDate)
	return &g, nil
}
