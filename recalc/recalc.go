package recalc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// DefaultSignificantChange is the percentage-point movement that triggers
// an event snapshot.
const DefaultSignificantChange = 1.0

// EntityKind names a CRM record type whose changes affect goal progress.
type EntityKind string

const (
	EntityDeal     EntityKind = "deal"
	EntityActivity EntityKind = "activity"
	EntityTask     EntityKind = "task"
)

// affected maps an entity kind to the metric types it feeds.
var affected = map[EntityKind][]goal.MetricType{
	EntityDeal:     {goal.MetricRevenue, goal.MetricDeals},
	EntityActivity: {goal.MetricActivities},
	EntityTask:     {goal.MetricTasks},
}

// Valuer resolves the current metric value of a goal. *metric.Registry
// satisfies it.
type Valuer interface {
	Value(ctx context.Context, g *goal.Goal) (float64, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for LastCalculatedAt and snapshot stamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExtensions sets the hook registry.
func WithExtensions(r *ext.Registry) Option {
	return func(s *Service) { s.exts = r }
}

// WithLimiter throttles metric queries during batch recalculation.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithSignificantChange sets the percentage-point threshold for event
// snapshots.
func WithSignificantChange(points float64) Option {
	return func(s *Service) { s.significantChange = points }
}

// Service recalculates goal progress.
type Service struct {
	goals     goal.Store
	snapshots snapshot.Store
	metrics   Valuer

	clock             clock.Clock
	logger            *slog.Logger
	exts              *ext.Registry
	limiter           *rate.Limiter
	significantChange float64
}

// New creates a Service.
func New(goals goal.Store, snapshots snapshot.Store, metrics Valuer, opts ...Option) *Service {
	s := &Service{
		goals:             goals,
		snapshots:         snapshots,
		metrics:           metrics,
		significantChange: DefaultSignificantChange,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Summary reports the outcome of a batch recalculation.
type Summary struct {
	Total        int           `json:"total"`
	Recalculated int           `json:"recalculated"`
	Failed       int           `json:"failed"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Report converts the summary into a run report for jobName.
func (s Summary) Report(jobName string) goalpace.RunReport {
	return goalpace.RunReport{
		Job:       jobName,
		Total:     s.Total,
		Processed: s.Recalculated,
		Skipped:   s.Total - s.Recalculated - s.Failed,
		Failed:    s.Failed,
		Elapsed:   s.Elapsed,
	}
}

// Recalculate recomputes one goal and returns its progress. Manual goals
// are returned unchanged. A metric failure flags the goal as failed and is
// returned to the caller.
func (s *Service) Recalculate(ctx context.Context, goalID id.GoalID) (float64, error) {
	g, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return 0, err
	}
	return s.recalculate(ctx, g)
}

func (s *Service) recalculate(ctx context.Context, g *goal.Goal) (float64, error) {
	if !g.AutoCalculated {
		s.logger.Debug("goal is manual, skipping recalculation",
			slog.String("goal_id", g.ID.String()),
		)
		return g.Progress, nil
	}

	previous := g.ProgressPercentage

	value, err := s.metrics.Value(ctx, g)
	if err != nil {
		s.fail(ctx, g.ID, err)
		return 0, fmt.Errorf("recalculate goal %s: %w", g.ID, err)
	}

	now := s.clock.Now().UTC()
	g.SetProgress(value)
	if err := s.goals.UpdateComputedFields(ctx, g.ID, g.Progress, g.ProgressPercentage, now); err != nil {
		return 0, fmt.Errorf("recalculate goal %s: %w", g.ID, err)
	}
	g.LastCalculatedAt = &now
	g.CalculationFailed = false
	g.ManualOverrideReason = ""

	s.exts.EmitGoalRecalculated(ctx, g, previous)

	if delta := math.Abs(g.ProgressPercentage - previous); delta >= s.significantChange {
		snap := &snapshot.Snapshot{
			ID:                 id.NewSnapshotID(),
			GoalID:             g.ID,
			ProgressValue:      g.Progress,
			TargetValue:        g.TargetValue,
			ProgressPercentage: g.ProgressPercentage,
			Source:             snapshot.SourceEvent,
			Timestamp:          now,
			Notes:              fmt.Sprintf("Progress changed by %.2f%%", delta),
		}
		if err := s.snapshots.InsertSnapshot(ctx, snap); err != nil {
			// Progress is already persisted; history stays one point short.
			s.logger.Warn("significant change snapshot failed",
				slog.String("goal_id", g.ID.String()),
				slog.String("error", err.Error()),
			)
		} else {
			s.exts.EmitSnapshotCreated(ctx, snap)
		}
	}

	s.logger.Debug("goal recalculated",
		slog.String("goal_id", g.ID.String()),
		slog.Float64("progress", g.Progress),
		slog.Float64("target", g.TargetValue),
		slog.Float64("percentage", g.ProgressPercentage),
	)
	return g.Progress, nil
}

func (s *Service) fail(ctx context.Context, goalID id.GoalID, calcErr error) {
	s.logger.Error("goal recalculation failed",
		slog.String("goal_id", goalID.String()),
		slog.String("error", calcErr.Error()),
	)
	if err := s.goals.MarkCalculationFailed(ctx, goalID, s.clock.Now().UTC()); err != nil {
		s.logger.Error("mark calculation failed",
			slog.String("goal_id", goalID.String()),
			slog.String("error", err.Error()),
		)
	}
	s.exts.EmitGoalCalculationFailed(ctx, goalID, calcErr)
}

// RecalculateAll recomputes every active auto-calculated goal. Per-goal
// failures are logged and counted. The returned error is non-nil only when
// the goal list cannot be loaded or ctx is cancelled between goals. The goal
// being recalculated when ctx is cancelled is still persisted.
func (s *Service) RecalculateAll(ctx context.Context) (Summary, error) {
	return s.recalculateMatching(ctx, nil)
}

// RecalculateForEntity recomputes the goals whose metric is fed by records
// of kind. entityID is only used for logging.
func (s *Service) RecalculateForEntity(ctx context.Context, kind EntityKind, entityID string) (Summary, error) {
	metrics, ok := affected[EntityKind(strings.ToLower(string(kind)))]
	if !ok {
		s.logger.Warn("unknown entity kind for recalculation",
			slog.String("entity_kind", string(kind)),
			slog.String("entity_id", entityID),
		)
		return Summary{}, nil
	}

	s.logger.Info("recalculating goals for entity change",
		slog.String("entity_kind", string(kind)),
		slog.String("entity_id", entityID),
	)
	return s.recalculateMatching(ctx, func(g *goal.Goal) bool {
		for _, m := range metrics {
			if g.Metric == m {
				return true
			}
		}
		return false
	})
}

func (s *Service) recalculateMatching(ctx context.Context, match func(*goal.Goal) bool) (Summary, error) {
	start := s.clock.Now()

	goals, err := s.goals.ListActiveAutoCalculated(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list goals: %w", err)
	}

	var sum Summary
	for _, g := range goals {
		if match != nil && !match(g) {
			continue
		}
		if err := ctx.Err(); err != nil {
			sum.Elapsed = s.clock.Now().Sub(start)
			return sum, err
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				sum.Elapsed = s.clock.Now().Sub(start)
				return sum, err
			}
		}

		sum.Total++
		if _, err := s.recalculate(context.WithoutCancel(ctx), g); err != nil {
			sum.Failed++
			continue
		}
		sum.Recalculated++
	}

	sum.Elapsed = s.clock.Now().Sub(start)
	s.logger.Info("batch recalculation completed",
		slog.Int("recalculated", sum.Recalculated),
		slog.Int("failed", sum.Failed),
		slog.Int("total", sum.Total),
		slog.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// Adjust overrides a goal's progress by hand. The value must lie in
// [0, target] and justification must be descriptive. The goal stops being
// auto-calculated and a manual snapshot is recorded.
func (s *Service) Adjust(ctx context.Context, goalID id.GoalID, progress float64, justification string) (*goal.Goal, error) {
	g, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if err := goal.ValidateManualAdjustment(progress, g.TargetValue, justification); err != nil {
		return nil, err
	}

	previous := g.ProgressPercentage
	now := s.clock.Now().UTC()
	g.SetProgress(progress)
	g.AutoCalculated = false
	g.ManualOverrideReason = justification
	g.LastCalculatedAt = &now

	if err := s.goals.ApplyManualProgress(ctx, g.ID, g.Progress, g.ProgressPercentage, justification, now); err != nil {
		return nil, fmt.Errorf("adjust goal %s: %w", g.ID, err)
	}

	snap := &snapshot.Snapshot{
		ID:                 id.NewSnapshotID(),
		GoalID:             g.ID,
		ProgressValue:      g.Progress,
		TargetValue:        g.TargetValue,
		ProgressPercentage: g.ProgressPercentage,
		Source:             snapshot.SourceManual,
		Timestamp:          now,
		Notes:              "Manual adjustment: " + justification,
	}
	if err := s.snapshots.InsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("adjust goal %s: snapshot: %w", g.ID, err)
	}
	s.exts.EmitSnapshotCreated(ctx, snap)

	s.logger.Info("manual progress adjustment",
		slog.String("goal_id", g.ID.String()),
		slog.Float64("previous_percentage", previous),
		slog.Float64("percentage", g.ProgressPercentage),
	)
	return g, nil
}
