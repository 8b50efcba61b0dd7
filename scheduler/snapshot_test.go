package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/metric"
	"github.com/xraph/goalpace/recalc"
	"github.com/xraph/goalpace/scheduler"
	"github.com/xraph/goalpace/snapshot"
	"github.com/xraph/goalpace/store/memory"
)

func TestUntilMidnight(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Duration
	}{
		{"late evening utc", time.Date(2024, 6, 15, 22, 30, 0, 0, time.UTC), time.UTC, 90 * time.Minute},
		{"exactly midnight", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), time.UTC, 24 * time.Hour},
		{"other zone already past midnight", time.Date(2024, 6, 15, 22, 30, 0, 0, time.UTC), plus2, 23*time.Hour + 30*time.Minute},
		{"month boundary", time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC), time.UTC, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scheduler.UntilMidnight(tt.now, tt.loc); got != tt.want {
				t.Errorf("UntilMidnight = %v, want %v", got, tt.want)
			}
		})
	}
}

func seedGoal(t *testing.T, s *memory.Store, progress float64, status goal.Status, auto bool) *goal.Goal {
	t.Helper()
	g := &goal.Goal{
		Entity:         goalpace.NewEntity(),
		ID:             id.NewGoalID(),
		Name:           "quarterly revenue",
		OwnerType:      goal.OwnerOrganization,
		Metric:         goal.MetricRevenue,
		TargetValue:    200,
		Status:         status,
		AutoCalculated: auto,
	}
	g.SetProgress(progress)
	if err := s.CreateGoal(context.Background(), g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	return g
}

func TestSnapshotterRun(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2024, 6, 15, 0, 0, 5, 0, time.UTC)
	store := memory.New()

	fresh := seedGoal(t, store, 50, goal.StatusActive, true)
	stale := seedGoal(t, store, 80, goal.StatusActive, true)
	done := seedGoal(t, store, 80, goal.StatusActive, true)
	seedGoal(t, store, 10, goal.StatusArchived, true)
	seedGoal(t, store, 10, goal.StatusActive, false)

	// stale has yesterday's snapshot, done already has today's.
	for _, seed := range []struct {
		g  *goal.Goal
		at time.Time
	}{
		{stale, today.Add(-24 * time.Hour)},
		{done, today.Add(time.Minute)},
	} {
		if err := store.InsertSnapshot(ctx, &snapshot.Snapshot{
			ID: id.NewSnapshotID(), GoalID: seed.g.ID, Source: snapshot.SourceDaily, Timestamp: seed.at,
		}); err != nil {
			t.Fatalf("InsertSnapshot: %v", err)
		}
	}

	sn := scheduler.NewSnapshotter(store, store, clock.Fixed(today), nil, nil, time.UTC)
	report, err := sn.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total != 3 || report.Processed != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	snap, err := store.LatestSnapshot(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap.Source != snapshot.SourceDaily || snap.Notes != scheduler.DailySnapshotNotes {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.ProgressValue != 50 || snap.TargetValue != 200 || snap.ProgressPercentage != 25 {
		t.Errorf("snapshot values = %v/%v (%v%%)", snap.ProgressValue, snap.TargetValue, snap.ProgressPercentage)
	}

	// A second run the same day creates nothing.
	report, err = sn.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Processed != 0 || report.Skipped != 3 {
		t.Errorf("second run report %+v, want all skipped", report)
	}
	list, _ := store.ListSnapshots(ctx, fresh.ID)
	if len(list) != 1 {
		t.Errorf("fresh goal has %d snapshots, want 1", len(list))
	}
}

func TestSnapshotterUsesLocationForToday(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := seedGoal(t, store, 10, goal.StatusActive, true)

	// 23:30 UTC on the 14th is already the 15th in UTC+2.
	prev := time.Date(2024, 6, 14, 23, 30, 0, 0, time.UTC)
	if err := store.InsertSnapshot(ctx, &snapshot.Snapshot{
		ID: id.NewSnapshotID(), GoalID: g.ID, Source: snapshot.SourceDaily, Timestamp: prev,
	}); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	now := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	sn := scheduler.NewSnapshotter(store, store, clock.Fixed(now), nil, nil, time.FixedZone("UTC+2", 2*60*60))
	report, err := sn.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("report %+v, want the goal skipped", report)
	}
}

// failingSnapshots fails inserts for one goal.
type failingSnapshots struct {
	snapshot.Store
	fail id.GoalID
}

func (f *failingSnapshots) InsertSnapshot(ctx context.Context, s *snapshot.Snapshot) error {
	if s.GoalID.String() == f.fail.String() {
		return errors.New("disk full")
	}
	return f.Store.InsertSnapshot(ctx, s)
}

func TestSnapshotterContinuesAfterFailure(t *testing.T) {
	store := memory.New()
	bad := seedGoal(t, store, 10, goal.StatusActive, true)
	seedGoal(t, store, 20, goal.StatusActive, true)

	sn := scheduler.NewSnapshotter(store, &failingSnapshots{Store: store, fail: bad.ID}, nil, nil, nil, time.UTC)
	report, err := sn.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Processed != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestSnapshotterStopsWhenCancelled(t *testing.T) {
	store := memory.New()
	seedGoal(t, store, 10, goal.StatusActive, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sn := scheduler.NewSnapshotter(store, store, nil, nil, nil, time.UTC)
	report, err := sn.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if report.Processed != 0 {
		t.Errorf("processed %d goals after cancellation", report.Processed)
	}
}

func TestSnapshotSchedulerRunOnce(t *testing.T) {
	store := memory.New()
	seedGoal(t, store, 10, goal.StatusActive, true)
	seedGoal(t, store, 20, goal.StatusActive, true)

	s := scheduler.NewSnapshotScheduler(store, scheduler.WithLocation(time.UTC))
	if s.Name() != goalpace.SnapshotJobName {
		t.Errorf("name = %q", s.Name())
	}

	report, ran, err := s.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce: ran=%v err=%v", ran, err)
	}
	if report.Job != goalpace.SnapshotJobName || report.Processed != 2 {
		t.Errorf("unexpected report %+v", report)
	}

	// Another instance the same day finds every goal already snapshotted.
	other := scheduler.NewSnapshotScheduler(store, scheduler.WithLocation(time.UTC), scheduler.WithHolder("host-b"))
	report, _, _ = other.RunOnce(context.Background())
	if report.Processed != 0 || report.Skipped != 2 {
		t.Errorf("second instance report %+v", report)
	}
}

func TestRecalcSchedulerRunOnce(t *testing.T) {
	store := memory.New()
	g := seedGoal(t, store, 0, goal.StatusActive, true)

	reg := metric.NewRegistry()
	reg.Register(goal.MetricRevenue, metric.SourceFunc(func(context.Context, *goal.Goal) (float64, error) {
		return 150, nil
	}))
	svc := recalc.New(store, store, reg)

	s := scheduler.NewRecalcScheduler(store, svc)
	report, ran, err := s.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce: ran=%v err=%v", ran, err)
	}
	if report.Job != goalpace.RecalcJobName || report.Processed != 1 {
		t.Errorf("unexpected report %+v", report)
	}

	stored, _ := store.GetGoal(context.Background(), g.ID)
	if stored.ProgressPercentage != 75 {
		t.Errorf("percentage = %v, want 75", stored.ProgressPercentage)
	}
}

// slowSnapshots holds each insert for a while, giving up early only if its
// context is cancelled.
type slowSnapshots struct {
	*memory.Store
	delay   time.Duration
	started chan struct{}
}

func (s *slowSnapshots) InsertSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Store.InsertSnapshot(ctx, snap)
}

func TestStopLetsInFlightSnapshotFinish(t *testing.T) {
	store := memory.New()
	g := seedGoal(t, store, 10, goal.StatusActive, true)

	slow := &slowSnapshots{Store: store, delay: 200 * time.Millisecond, started: make(chan struct{}, 1)}
	s := scheduler.NewSnapshotScheduler(slow, scheduler.WithInitialDelay(0), scheduler.WithLocation(time.UTC))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-slow.started:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot insert never started")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	snaps, err := store.ListSnapshots(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("stored %d snapshots, want the in-flight one", len(snaps))
	}
}

func TestSnapshotterStopsBetweenGoals(t *testing.T) {
	store := memory.New()
	seedGoal(t, store, 10, goal.StatusActive, true)
	seedGoal(t, store, 20, goal.StatusActive, true)

	slow := &slowSnapshots{Store: store, delay: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	sn := scheduler.NewSnapshotter(store, slow, nil, nil, nil, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-slow.started
		cancel()
	}()

	report, err := sn.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report %+v, want exactly the in-flight goal processed", report)
	}
}

func TestLeaseExpiryLetsInFlightSnapshotFinish(t *testing.T) {
	store := memory.New()
	g := seedGoal(t, store, 10, goal.StatusActive, true)

	slow := &slowSnapshots{Store: store, delay: 200 * time.Millisecond, started: make(chan struct{}, 1)}
	s := scheduler.NewSnapshotScheduler(slow,
		scheduler.WithLocation(time.UTC),
		scheduler.WithLeaseTTL(50*time.Millisecond),
	)

	if _, _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	snaps, err := store.ListSnapshots(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("stored %d snapshots, want the write that outlived the lease", len(snaps))
	}
}
