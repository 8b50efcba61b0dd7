package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// InsertSnapshot appends a snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if _, err := s.db.NewInsert().Model(toSnapshotModel(snap)).Exec(ctx); err != nil {
		return fmt.Errorf("goalpace/bun: insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a goal.
func (s *Store) LatestSnapshot(ctx context.Context, goalID id.GoalID) (*snapshot.Snapshot, error) {
	m := new(snapshotModel)
	err := s.db.NewSelect().Model(m).
		Where("goal_id = ?", goalID.String()).
		OrderExpr("snapshot_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("goalpace/bun: latest snapshot: %w", err)
	}
	return fromSnapshotModel(m)
}

// ListSnapshots returns every snapshot of a goal, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, goalID id.GoalID) ([]*snapshot.Snapshot, error) {
	var models []snapshotModel
	err := s.db.NewSelect().Model(&models).
		Where("goal_id = ?", goalID.String()).
		OrderExpr("snapshot_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("goalpace/bun: list snapshots: %w", err)
	}

	snaps := make([]*snapshot.Snapshot, 0, len(models))
	for i := range models {
		snap, convErr := fromSnapshotModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
