package forecast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/forecast"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

type stubGoals struct {
	goal.Store
	g *goal.Goal
}

func (s stubGoals) GetGoal(_ context.Context, goalID id.GoalID) (*goal.Goal, error) {
	if s.g == nil || s.g.ID.String() != goalID.String() {
		return nil, goalpace.ErrGoalNotFound
	}
	return s.g, nil
}

type stubSnapshots struct {
	snapshot.Store
	list []*snapshot.Snapshot
}

func (s stubSnapshots) ListSnapshots(context.Context, id.GoalID) ([]*snapshot.Snapshot, error) {
	return s.list, nil
}

func TestServiceForecast(t *testing.T) {
	g := &goal.Goal{ID: id.NewGoalID(), TargetValue: 100, EndDate: now.Add(days(20))}
	g.SetProgress(50)

	snaps := stubSnapshots{list: []*snapshot.Snapshot{
		{GoalID: g.ID, ProgressValue: 40, Timestamp: now.Add(-days(2))},
		{GoalID: g.ID, ProgressValue: 50, Timestamp: now},
	}}

	svc := forecast.NewService(stubGoals{g: g}, snaps, forecast.NewEngine(forecast.WithClock(clock.Fixed(now))))
	got, err := svc.Forecast(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if got.ForecastStatus != forecast.StatusAhead {
		t.Errorf("status = %s, want ahead", got.ForecastStatus)
	}
	if got.DataPointsCount != 2 {
		t.Errorf("DataPointsCount = %d, want 2", got.DataPointsCount)
	}
}

func TestServiceForecastMissingGoal(t *testing.T) {
	svc := forecast.NewService(stubGoals{}, stubSnapshots{}, nil)
	_, err := svc.Forecast(context.Background(), id.NewGoalID())
	if !errors.Is(err, goalpace.ErrGoalNotFound) {
		t.Errorf("Forecast(missing) = %v, want ErrGoalNotFound", err)
	}
}

func TestInputFor(t *testing.T) {
	g := &goal.Goal{Progress: 3, TargetValue: 9, EndDate: time.Unix(100, 0)}
	in := forecast.InputFor(g, []*snapshot.Snapshot{{ProgressValue: 1, Timestamp: time.Unix(1, 0)}})
	if in.Progress != 3 || in.Target != 9 || !in.EndDate.Equal(time.Unix(100, 0)) {
		t.Errorf("unexpected input %+v", in)
	}
	if len(in.History) != 1 || in.History[0].Value != 1 {
		t.Errorf("unexpected history %+v", in.History)
	}
}
