package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// DailySnapshotNotes is the note recorded on scheduled snapshots.
const DailySnapshotNotes = "Daily midnight snapshot"

// midnight fires at 00:00 every day in the location of the time passed to
// Next.
var midnight = mustParse("0 0 * * *")

func mustParse(spec string) cronlib.Schedule {
	sched, err := cronlib.ParseStandard(spec)
	if err != nil {
		panic(fmt.Sprintf("scheduler: parse %q: %v", spec, err))
	}
	return sched
}

// UntilMidnight returns the delay from now to the next midnight in loc.
func UntilMidnight(now time.Time, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return midnight.Next(local).Sub(local)
}

// SnapshotStore is the persistence a snapshot scheduler needs.
type SnapshotStore interface {
	goal.Store
	snapshot.Store
	lock.Store
}

// Snapshotter appends daily progress snapshots.
type Snapshotter struct {
	goals     goal.Store
	snapshots snapshot.Store
	clock     clock.Clock
	logger    *slog.Logger
	exts      *ext.Registry
	location  *time.Location
}

// NewSnapshotter creates a Snapshotter. Nil clock, logger and location
// default to the real clock, slog.Default and time.Local.
func NewSnapshotter(goals goal.Store, snapshots snapshot.Store, c clock.Clock, logger *slog.Logger, exts *ext.Registry, loc *time.Location) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Snapshotter{
		goals:     goals,
		snapshots: snapshots,
		clock:     clock.OrReal(c),
		logger:    logger,
		exts:      exts,
		location:  loc,
	}
}

// Run snapshots every active auto-calculated goal that has no snapshot
// dated today. Per-goal failures are logged and counted. Cancellation of ctx
// is observed between goals; a goal whose write has started is finished.
func (sn *Snapshotter) Run(ctx context.Context) (goalpace.RunReport, error) {
	start := sn.clock.Now()
	report := goalpace.RunReport{Job: goalpace.SnapshotJobName}

	goals, err := sn.goals.ListActiveAutoCalculated(ctx)
	if err != nil {
		return report, fmt.Errorf("list goals: %w", err)
	}
	report.Total = len(goals)

	for _, g := range goals {
		if err := ctx.Err(); err != nil {
			report.Elapsed = sn.clock.Now().Sub(start)
			return report, err
		}

		created, err := sn.snapshotGoal(context.WithoutCancel(ctx), g)
		switch {
		case err != nil:
			report.Failed++
			sn.logger.Error("daily snapshot failed",
				slog.String("goal_id", g.ID.String()),
				slog.String("error", err.Error()),
			)
		case created:
			report.Processed++
		default:
			report.Skipped++
		}
	}

	report.Elapsed = sn.clock.Now().Sub(start)
	sn.logger.Info("daily snapshot run completed",
		slog.Int("created", report.Processed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Int("total", report.Total),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (sn *Snapshotter) snapshotGoal(ctx context.Context, g *goal.Goal) (bool, error) {
	now := sn.clock.Now()

	latest, err := sn.snapshots.LatestSnapshot(ctx, g.ID)
	switch {
	case errors.Is(err, goalpace.ErrSnapshotNotFound):
	case err != nil:
		return false, err
	case snapshot.SameDay(latest.Timestamp, now, sn.location):
		return false, nil
	}

	s := &snapshot.Snapshot{
		ID:                 id.NewSnapshotID(),
		GoalID:             g.ID,
		ProgressValue:      g.Progress,
		TargetValue:        g.TargetValue,
		ProgressPercentage: g.ProgressPercentage,
		Source:             snapshot.SourceDaily,
		Timestamp:          now.UTC(),
		Notes:              DailySnapshotNotes,
	}
	if err := sn.snapshots.InsertSnapshot(ctx, s); err != nil {
		return false, err
	}
	sn.exts.EmitSnapshotCreated(ctx, s)
	return true, nil
}

// NewSnapshotScheduler creates the daily snapshot job. Its first run is at
// the next midnight in the configured location, then every 24 hours.
func NewSnapshotScheduler(st SnapshotStore, opts ...Option) *Scheduler {
	defaults := []Option{
		WithInterval(24 * time.Hour),
		func(s *Scheduler) {
			s.firstDelay = func(now time.Time) time.Duration { return UntilMidnight(now, s.location) }
		},
	}
	s := New(goalpace.SnapshotJobName, st, nil, append(defaults, opts...)...)
	s.run = NewSnapshotter(st, st, s.clock, s.logger, s.exts, s.location).Run
	return s
}
