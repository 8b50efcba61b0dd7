//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/lock/locktest"
	"github.com/xraph/goalpace/snapshot"
	bunstore "github.com/xraph/goalpace/store/bun"
)

// setupTestStore creates a Postgres container and returns a connected Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("goalpace_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	// Create Bun DB from pgdriver.
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())

	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))

	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	return store
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	// Second migrate should be a no-op.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Goal Store tests
// ──────────────────────────────────────────────────

func newGoal(metric goal.MetricType) *goal.Goal {
	return &goal.Goal{
		Entity:         goalpace.NewEntity(),
		ID:             id.NewGoalID(),
		Name:           "pipeline " + string(metric),
		OwnerType:      goal.OwnerTeam,
		OwnerID:        "team-9",
		Metric:         metric,
		TargetValue:    40,
		EndDate:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:         goal.StatusActive,
		AutoCalculated: true,
	}
}

func TestGoalStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	g := newGoal(goal.MetricDeals)

	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}
	if dupErr := s.CreateGoal(ctx, g); !errors.Is(dupErr, goalpace.ErrDuplicateGoal) {
		t.Fatalf("expected ErrDuplicateGoal, got: %v", dupErr)
	}

	got, err := s.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != g.Name || got.Metric != goal.MetricDeals {
		t.Fatalf("unexpected goal %+v", got)
	}
	if !got.StartDate.IsZero() {
		t.Errorf("expected unset start date, got %v", got.StartDate)
	}
	if !got.EndDate.Equal(g.EndDate) {
		t.Errorf("EndDate = %v, want %v", got.EndDate, g.EndDate)
	}

	if _, err := s.GetGoal(ctx, id.NewGoalID()); !errors.Is(err, goalpace.ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got: %v", err)
	}
}

func TestGoalStore_ComputedFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	g := newGoal(goal.MetricActivities)
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.MarkCalculationFailed(ctx, g.ID, at); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := s.GetGoal(ctx, g.ID)
	if !got.CalculationFailed {
		t.Fatal("expected CalculationFailed")
	}

	if err := s.UpdateComputedFields(ctx, g.ID, 10, 25, at); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetGoal(ctx, g.ID)
	if got.CalculationFailed || got.Progress != 10 || got.ProgressPercentage != 25 {
		t.Fatalf("unexpected goal %+v", got)
	}

	list, err := s.ListActiveAutoCalculated(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %d goals, err %v", len(list), err)
	}

	if err := s.ApplyManualProgress(ctx, g.ID, 12, 30, "Imported from legacy CRM", at); err != nil {
		t.Fatalf("manual: %v", err)
	}
	list, _ = s.ListActiveAutoCalculated(ctx)
	if len(list) != 0 {
		t.Fatal("manual goal still listed")
	}

	if err := s.UpdateComputedFields(ctx, id.NewGoalID(), 1, 1, at); !errors.Is(err, goalpace.ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Snapshot Store tests
// ──────────────────────────────────────────────────

func TestSnapshotStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	g := newGoal(goal.MetricRevenue)
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := s.LatestSnapshot(ctx, g.ID); !errors.Is(err, goalpace.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got: %v", err)
	}

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, day := range []int{2, 0, 1} {
		err := s.InsertSnapshot(ctx, &snapshot.Snapshot{
			ID:            id.NewSnapshotID(),
			GoalID:        g.ID,
			ProgressValue: float64(day),
			TargetValue:   40,
			Source:        snapshot.SourceDaily,
			Timestamp:     base.AddDate(0, 0, day),
			Notes:         "Daily midnight snapshot",
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	latest, err := s.LatestSnapshot(ctx, g.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ProgressValue != 2 {
		t.Fatalf("latest progress = %v, want 2", latest.ProgressValue)
	}

	list, err := s.ListSnapshots(ctx, g.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, snap := range list {
		if snap.ProgressValue != float64(i) {
			t.Fatalf("snapshot %d progress = %v, want oldest first", i, snap.ProgressValue)
		}
	}
}

// ──────────────────────────────────────────────────
// Lock Store tests
// ──────────────────────────────────────────────────

func TestLockStore(t *testing.T) {
	s := setupTestStore(t)
	locktest.Run(t, func(*testing.T) lock.Store { return s })
}
