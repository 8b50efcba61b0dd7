package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type snapshotCreatedEntry struct {
	name string
	hook SnapshotCreated
}

type goalRecalculatedEntry struct {
	name string
	hook GoalRecalculated
}

type goalCalculationFailedEntry struct {
	name string
	hook GoalCalculationFailed
}

type runCompletedEntry struct {
	name string
	hook RunCompleted
}

type runFailedEntry struct {
	name string
	hook RunFailed
}

type lockDeniedEntry struct {
	name string
	hook LockDenied
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register all extensions before the schedulers start; emitting is safe
// from multiple goroutines once registration is done. A nil *Registry
// ignores every emit.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	snapshotCreated       []snapshotCreatedEntry
	goalRecalculated      []goalRecalculatedEntry
	goalCalculationFailed []goalCalculationFailedEntry
	runCompleted          []runCompletedEntry
	runFailed             []runFailedEntry
	lockDenied            []lockDeniedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(SnapshotCreated); ok {
		r.snapshotCreated = append(r.snapshotCreated, snapshotCreatedEntry{name, h})
	}
	if h, ok := e.(GoalRecalculated); ok {
		r.goalRecalculated = append(r.goalRecalculated, goalRecalculatedEntry{name, h})
	}
	if h, ok := e.(GoalCalculationFailed); ok {
		r.goalCalculationFailed = append(r.goalCalculationFailed, goalCalculationFailedEntry{name, h})
	}
	if h, ok := e.(RunCompleted); ok {
		r.runCompleted = append(r.runCompleted, runCompletedEntry{name, h})
	}
	if h, ok := e.(RunFailed); ok {
		r.runFailed = append(r.runFailed, runFailedEntry{name, h})
	}
	if h, ok := e.(LockDenied); ok {
		r.lockDenied = append(r.lockDenied, lockDeniedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// ──────────────────────────────────────────────────
// Goal event emitters
// ──────────────────────────────────────────────────

// EmitSnapshotCreated notifies all extensions that implement SnapshotCreated.
func (r *Registry) EmitSnapshotCreated(ctx context.Context, s *snapshot.Snapshot) {
	if r == nil {
		return
	}
	for _, e := range r.snapshotCreated {
		if err := e.hook.OnSnapshotCreated(ctx, s); err != nil {
			r.logHookError("OnSnapshotCreated", e.name, err)
		}
	}
}

// EmitGoalRecalculated notifies all extensions that implement GoalRecalculated.
func (r *Registry) EmitGoalRecalculated(ctx context.Context, g *goal.Goal, previousPercentage float64) {
	if r == nil {
		return
	}
	for _, e := range r.goalRecalculated {
		if err := e.hook.OnGoalRecalculated(ctx, g, previousPercentage); err != nil {
			r.logHookError("OnGoalRecalculated", e.name, err)
		}
	}
}

// EmitGoalCalculationFailed notifies all extensions that implement GoalCalculationFailed.
func (r *Registry) EmitGoalCalculationFailed(ctx context.Context, goalID id.GoalID, calcErr error) {
	if r == nil {
		return
	}
	for _, e := range r.goalCalculationFailed {
		if err := e.hook.OnGoalCalculationFailed(ctx, goalID, calcErr); err != nil {
			r.logHookError("OnGoalCalculationFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Scheduler event emitters
// ──────────────────────────────────────────────────

// EmitRunCompleted notifies all extensions that implement RunCompleted.
func (r *Registry) EmitRunCompleted(ctx context.Context, report goalpace.RunReport) {
	if r == nil {
		return
	}
	for _, e := range r.runCompleted {
		if err := e.hook.OnRunCompleted(ctx, report); err != nil {
			r.logHookError("OnRunCompleted", e.name, err)
		}
	}
}

// EmitRunFailed notifies all extensions that implement RunFailed.
func (r *Registry) EmitRunFailed(ctx context.Context, jobName string, runErr error) {
	if r == nil {
		return
	}
	for _, e := range r.runFailed {
		if err := e.hook.OnRunFailed(ctx, jobName, runErr); err != nil {
			r.logHookError("OnRunFailed", e.name, err)
		}
	}
}

// EmitLockDenied notifies all extensions that implement LockDenied.
func (r *Registry) EmitLockDenied(ctx context.Context, jobName, holder string) {
	if r == nil {
		return
	}
	for _, e := range r.lockDenied {
		if err := e.hook.OnLockDenied(ctx, jobName, holder); err != nil {
			r.logHookError("OnLockDenied", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block a run.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
