// Package snapshot defines immutable, timestamped records of goal progress.
package snapshot

import (
	"context"
	"time"

	"github.com/xraph/goalpace/id"
)

// Source records what produced a snapshot.
type Source string

const (
	SourceDaily  Source = "daily_snapshot"
	SourceManual Source = "manual"
	SourceEvent  Source = "event"
)

// Snapshot is an append-only record of a goal's progress at one instant.
type Snapshot struct {
	ID                 id.SnapshotID `json:"id"`
	GoalID             id.GoalID     `json:"goal_id"`
	ProgressValue      float64       `json:"progress_value"`
	TargetValue        float64       `json:"target_value"`
	ProgressPercentage float64       `json:"progress_percentage"`
	Source             Source        `json:"source"`
	Timestamp          time.Time     `json:"timestamp"`
	Notes              string        `json:"notes,omitempty"`
}

// Store defines the persistence contract for snapshots.
type Store interface {
	// InsertSnapshot appends a snapshot.
	InsertSnapshot(ctx context.Context, s *Snapshot) error

	// LatestSnapshot returns the most recent snapshot of a goal, or
	// goalpace.ErrSnapshotNotFound when it has none.
	LatestSnapshot(ctx context.Context, goalID id.GoalID) (*Snapshot, error)

	// ListSnapshots returns every snapshot of a goal, oldest first.
	ListSnapshots(ctx context.Context, goalID id.GoalID) ([]*Snapshot, error)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
