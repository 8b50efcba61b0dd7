package forecast

import (
	"context"
	"fmt"

	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// Service loads a goal and its history and forecasts it.
type Service struct {
	goals     goal.Store
	snapshots snapshot.Store
	engine    *Engine
}

// NewService creates a forecast Service. A nil engine uses NewEngine().
func NewService(goals goal.Store, snapshots snapshot.Store, engine *Engine) *Service {
	if engine == nil {
		engine = NewEngine()
	}
	return &Service{goals: goals, snapshots: snapshots, engine: engine}
}

// Forecast computes the forecast for one goal from its full snapshot
// history.
func (s *Service) Forecast(ctx context.Context, goalID id.GoalID) (Result, error) {
	g, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return Result{}, fmt.Errorf("forecast: get goal %s: %w", goalID, err)
	}

	history, err := s.snapshots.ListSnapshots(ctx, goalID)
	if err != nil {
		return Result{}, fmt.Errorf("forecast: list snapshots %s: %w", goalID, err)
	}

	return s.engine.Compute(InputFor(g, history)), nil
}

// InputFor builds an engine Input from a goal and its snapshots.
func InputFor(g *goal.Goal, history []*snapshot.Snapshot) Input {
	in := Input{
		Progress: g.Progress,
		Target:   g.TargetValue,
		EndDate:  g.EndDate,
		History:  make([]Sample, 0, len(history)),
	}
	for _, s := range history {
		in.History = append(in.History, Sample{At: s.Timestamp, Value: s.ProgressValue})
	}
	return in
}
