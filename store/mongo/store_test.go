//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	mongomodule "github.com/testcontainers/testcontainers-go/modules/mongodb"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/lock/locktest"
	"github.com/xraph/goalpace/snapshot"
	"github.com/xraph/goalpace/store/mongo"
)

// setupTestStore starts a MongoDB container and returns a migrated Store.
func setupTestStore(t *testing.T) *mongo.Store {
	t.Helper()

	ctx := context.Background()

	container, err := mongomodule.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongo container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	s := mongo.New(client.Database("goalpace_test"))
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMongoStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	g := &goal.Goal{
		Entity:         goalpace.NewEntity(),
		ID:             id.NewGoalID(),
		Name:           "support tasks",
		OwnerType:      goal.OwnerTeam,
		OwnerID:        "team-2",
		Metric:         goal.MetricTasks,
		TargetValue:    120,
		Status:         goal.StatusActive,
		AutoCalculated: true,
	}

	t.Run("Goals", func(t *testing.T) {
		if err := s.CreateGoal(ctx, g); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.CreateGoal(ctx, g); !errors.Is(err, goalpace.ErrDuplicateGoal) {
			t.Fatalf("expected ErrDuplicateGoal, got %v", err)
		}

		at := time.Now().UTC().Truncate(time.Millisecond)
		if err := s.UpdateComputedFields(ctx, g.ID, 30, 25, at); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, err := s.GetGoal(ctx, g.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Progress != 30 || got.LastCalculatedAt == nil || !got.LastCalculatedAt.Equal(at) {
			t.Errorf("unexpected goal %+v", got)
		}

		list, err := s.ListActiveAutoCalculated(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("list = %d goals, err %v", len(list), err)
		}

		if err := s.MarkCalculationFailed(ctx, id.NewGoalID(), at); !errors.Is(err, goalpace.ErrGoalNotFound) {
			t.Errorf("expected ErrGoalNotFound, got %v", err)
		}
	})

	t.Run("Snapshots", func(t *testing.T) {
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		for i := range 3 {
			if err := s.InsertSnapshot(ctx, &snapshot.Snapshot{
				ID:            id.NewSnapshotID(),
				GoalID:        g.ID,
				ProgressValue: float64(10 * i),
				TargetValue:   120,
				Source:        snapshot.SourceDaily,
				Timestamp:     base.AddDate(0, 0, i),
			}); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		latest, err := s.LatestSnapshot(ctx, g.ID)
		if err != nil || latest.ProgressValue != 20 {
			t.Fatalf("latest = %+v, err %v", latest, err)
		}
		list, err := s.ListSnapshots(ctx, g.ID)
		if err != nil || len(list) != 3 || list[0].ProgressValue != 0 {
			t.Fatalf("list = %d snapshots, err %v", len(list), err)
		}
		if _, err := s.LatestSnapshot(ctx, id.NewGoalID()); !errors.Is(err, goalpace.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("Locks", func(t *testing.T) {
		locktest.Run(t, func(*testing.T) lock.Store { return s })
	})
}
