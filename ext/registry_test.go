package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnSnapshotCreated(_ context.Context, _ *snapshot.Snapshot) error {
	e.calls = append(e.calls, "OnSnapshotCreated")
	return nil
}

func (e *allHooksExt) OnGoalRecalculated(_ context.Context, _ *goal.Goal, _ float64) error {
	e.calls = append(e.calls, "OnGoalRecalculated")
	return nil
}

func (e *allHooksExt) OnGoalCalculationFailed(_ context.Context, _ id.GoalID, _ error) error {
	e.calls = append(e.calls, "OnGoalCalculationFailed")
	return nil
}

func (e *allHooksExt) OnRunCompleted(_ context.Context, _ goalpace.RunReport) error {
	e.calls = append(e.calls, "OnRunCompleted")
	return nil
}

func (e *allHooksExt) OnRunFailed(_ context.Context, _ string, _ error) error {
	e.calls = append(e.calls, "OnRunFailed")
	return nil
}

func (e *allHooksExt) OnLockDenied(_ context.Context, _, _ string) error {
	e.calls = append(e.calls, "OnLockDenied")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// snapshotOnlyExt only implements SnapshotCreated.
type snapshotOnlyExt struct {
	calls []string
}

func (e *snapshotOnlyExt) Name() string { return "snapshot-only" }

func (e *snapshotOnlyExt) OnSnapshotCreated(_ context.Context, _ *snapshot.Snapshot) error {
	e.calls = append(e.calls, "OnSnapshotCreated")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnSnapshotCreated(_ context.Context, _ *snapshot.Snapshot) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &snapshotOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()

	r.EmitSnapshotCreated(ctx, &snapshot.Snapshot{})
	if len(all.calls) != 1 || all.calls[0] != "OnSnapshotCreated" {
		t.Fatalf("all: expected [OnSnapshotCreated], got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("so: expected [OnSnapshotCreated], got %v", so.calls)
	}

	r.EmitLockDenied(ctx, "job", "holder")
	if len(all.calls) != 2 || all.calls[1] != "OnLockDenied" {
		t.Fatalf("all: expected OnLockDenied as 2nd, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("so: should still have 1 call, got %v", so.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitSnapshotCreated(ctx, &snapshot.Snapshot{})
	r.EmitGoalRecalculated(ctx, &goal.Goal{}, 10)
	r.EmitGoalCalculationFailed(ctx, id.NewGoalID(), errors.New("fail"))
	r.EmitRunCompleted(ctx, goalpace.RunReport{Job: "j", Elapsed: time.Second})
	r.EmitRunFailed(ctx, "j", errors.New("fail"))
	r.EmitLockDenied(ctx, "j", "h")
	r.EmitShutdown(ctx)

	expected := []string{
		"OnSnapshotCreated", "OnGoalRecalculated", "OnGoalCalculationFailed",
		"OnRunCompleted", "OnRunFailed", "OnLockDenied", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	r.EmitSnapshotCreated(context.Background(), &snapshot.Snapshot{})

	if len(all.calls) != 1 || all.calls[0] != "OnSnapshotCreated" {
		t.Fatalf("all: expected [OnSnapshotCreated] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitSnapshotCreated(ctx, &snapshot.Snapshot{})
	r.EmitGoalRecalculated(ctx, &goal.Goal{}, 0)
	r.EmitGoalCalculationFailed(ctx, id.NewGoalID(), errors.New("x"))
	r.EmitRunCompleted(ctx, goalpace.RunReport{})
	r.EmitRunFailed(ctx, "j", errors.New("x"))
	r.EmitLockDenied(ctx, "j", "h")
	r.EmitShutdown(ctx)
}

func TestRegistry_NilRegistryNoOp(_ *testing.T) {
	var r *ext.Registry
	ctx := context.Background()

	r.EmitSnapshotCreated(ctx, &snapshot.Snapshot{})
	r.EmitRunCompleted(ctx, goalpace.RunReport{})
	r.EmitLockDenied(ctx, "j", "h")
	r.EmitShutdown(ctx)
	_ = r.Extensions()
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	r.EmitShutdown(context.Background())

	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
