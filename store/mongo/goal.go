package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
)

// CreateGoal persists a new goal.
func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) error {
	if g.CreatedAt.IsZero() {
		g.Entity = goalpace.NewEntity()
	}
	_, err := s.db.Collection(colGoals).InsertOne(ctx, toGoalModel(g))
	if err != nil {
		if isDuplicateKey(err) {
			return goalpace.ErrDuplicateGoal
		}
		return fmt.Errorf("goalpace/mongo: create goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(ctx context.Context, goalID id.GoalID) (*goal.Goal, error) {
	var m goalModel
	err := s.db.Collection(colGoals).FindOne(ctx, bson.M{"_id": goalID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, goalpace.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goalpace/mongo: get goal: %w", err)
	}
	return fromGoalModel(&m)
}

// ListActiveAutoCalculated returns active auto-calculated goals ordered by
// creation time.
func (s *Store) ListActiveAutoCalculated(ctx context.Context) ([]*goal.Goal, error) {
	cur, err := s.db.Collection(colGoals).Find(ctx,
		bson.M{"status": string(goal.StatusActive), "auto_calculated": true},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("goalpace/mongo: list goals: %w", err)
	}

	var models []goalModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("goalpace/mongo: decode goals: %w", err)
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
	return s.updateGoal(ctx, goalID, "update computed fields", bson.M{
		"progress":               progress,
		"progress_percentage":    percentage,
		"last_calculated_at":     at,
		"calculation_failed":     false,
		"manual_override_reason": "",
		"updated_at":             at,
	})
}

// ApplyManualProgress records a hand-entered progress value.
func (s *Store) ApplyManualProgress(ctx context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error {
	return s.updateGoal(ctx, goalID, "apply manual progress", bson.M{
		"progress":               progress,
		"progress_percentage":    percentage,
		"auto_calculated":        false,
		"manual_override_reason": reason,
		"last_calculated_at":     at,
		"updated_at":             at,
	})
}

// MarkCalculationFailed flags a goal whose metric query failed.
func (s *Store) MarkCalculationFailed(ctx context.Context, goalID id.GoalID, at time.Time) error {
	return s.updateGoal(ctx, goalID, "mark calculation failed", bson.M{
		"calculation_failed": true,
		"last_calculated_at": at,
		"updated_at":         at,
	})
}

func (s *Store) updateGoal(ctx context.Context, goalID id.GoalID, op string, set bson.M) error {
	res, err := s.db.Collection(colGoals).UpdateOne(ctx,
		bson.M{"_id": goalID.String()},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("goalpace/mongo: %s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return goalpace.ErrGoalNotFound
	}
	return nil
}
