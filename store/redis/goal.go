package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
)

// CreateGoal stores the goal as JSON and indexes it by creation time.
func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) error {
	if g.CreatedAt.IsZero() {
		g.Entity = goalpace.NewEntity()
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("goalpace/redis: marshal goal: %w", err)
	}

	gID := g.ID.String()
	created, err := s.client.SetNX(ctx, goalKey(gID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("goalpace/redis: create goal: %w", err)
	}
	if !created {
		return goalpace.ErrDuplicateGoal
	}

	score := float64(g.CreatedAt.UnixMilli())
	if err := s.client.ZAdd(ctx, goalIndexKey, goredis.Z{Score: score, Member: gID}).Err(); err != nil {
		return fmt.Errorf("goalpace/redis: index goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(ctx context.Context, goalID id.GoalID) (*goal.Goal, error) {
	raw, err := s.client.Get(ctx, goalKey(goalID.String())).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, goalpace.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goalpace/redis: get goal: %w", err)
	}
	return decodeGoal(raw)
}

// ListActiveAutoCalculated walks the goal index in creation order and
// returns the active auto-calculated goals.
func (s *Store) ListActiveAutoCalculated(ctx context.Context) ([]*goal.Goal, error) {
	ids, err := s.client.ZRange(ctx, goalIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("goalpace/redis: list goal ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, gID := range ids {
		keys[i] = goalKey(gID)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("goalpace/redis: load goals: %w", err)
	}

	var goals []*goal.Goal
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // removed between ZRANGE and MGET
		}
		g, decErr := decodeGoal([]byte(str))
		if decErr != nil {
			return nil, decErr
		}
		if g.Status == goal.StatusActive && g.AutoCalculated {
			goals = append(goals, g)
		}
	}
	return goals, nil
}

// UpdateComputedFields stores a recalculated progress value.
func (s *Store) UpdateComputedFields(ctx context.Context, goalID id.GoalID, progress, percentage float64, at time.Time) error {
	return s.updateGoal(ctx, goalID, "update computed fields", func(g *goal.Goal) {
		g.Progress = progress
		g.ProgressPercentage = percentage
		g.CalculationFailed = false
		g.ManualOverrideReason = ""
		g.LastCalculatedAt = &at
		g.UpdatedAt = at
	})
}

// ApplyManualProgress records a hand-entered progress value.
func (s *Store) ApplyManualProgress(ctx context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error {
	return s.updateGoal(ctx, goalID, "apply manual progress", func(g *goal.Goal) {
		g.Progress = progress
		g.ProgressPercentage = percentage
		g.AutoCalculated = false
		g.ManualOverrideReason = reason
		g.LastCalculatedAt = &at
		g.UpdatedAt = at
	})
}

// MarkCalculationFailed flags a goal whose metric query failed.
func (s *Store) MarkCalculationFailed(ctx context.Context, goalID id.GoalID, at time.Time) error {
	return s.updateGoal(ctx, goalID, "mark calculation failed", func(g *goal.Goal) {
		g.CalculationFailed = true
		g.LastCalculatedAt = &at
		g.UpdatedAt = at
	})
}

// updateGoal applies mutate under WATCH so a concurrent writer forces a
// retry instead of a lost update.
func (s *Store) updateGoal(ctx context.Context, goalID id.GoalID, op string, mutate func(*goal.Goal)) error {
	key := goalKey(goalID.String())

	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return goalpace.ErrGoalNotFound
			}
			return err
		}
		g, err := decodeGoal(raw)
		if err != nil {
			return err
		}
		mutate(g)
		data, err := json.Marshal(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case errors.Is(err, goalpace.ErrGoalNotFound):
			return err
		default:
			return fmt.Errorf("goalpace/redis: %s: %w", op, err)
		}
	}
	return fmt.Errorf("goalpace/redis: %s: %w", op, goredis.TxFailedErr)
}

func decodeGoal(raw []byte) (*goal.Goal, error) {
	var g goal.Goal
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("goalpace/redis: decode goal: %w", err)
	}
	return &g, nil
}
