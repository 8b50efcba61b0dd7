package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

const snapshotColumns = `id, goal_id, progress_value, target_value,
	progress_percentage, source, snapshot_at, notes`

// InsertSnapshot appends a snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO goalpace_snapshots (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID.String(), snap.GoalID.String(), snap.ProgressValue, snap.TargetValue,
		snap.ProgressPercentage, string(snap.Source), snap.Timestamp, snap.Notes,
	)
	if err != nil {
		return fmt.Errorf("goalpace/postgres: insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a goal.
func (s *Store) LatestSnapshot(ctx context.Context, goalID id.GoalID) (*snapshot.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+` FROM goalpace_snapshots
		WHERE goal_id = $1
		ORDER BY snapshot_at DESC
		LIMIT 1`,
		goalID.String(),
	)
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("goalpace/postgres: latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns every snapshot of a goal, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, goalID id.GoalID) ([]*snapshot.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotColumns+` FROM goalpace_snapshots
		WHERE goal_id = $1
		ORDER BY snapshot_at ASC`,
		goalID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("goalpace/postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*snapshot.Snapshot
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("goalpace/postgres: scan snapshot: %w", scanErr)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goalpace/postgres: list snapshots: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row pgx.Row) (*snapshot.Snapshot, error) {
	var (
		snap          snapshot.Snapshot
		rawID, rawGID string
		source        string
	)
	err := row.Scan(
		&rawID, &rawGID, &snap.ProgressValue, &snap.TargetValue,
		&snap.ProgressPercentage, &source, &snap.Timestamp, &snap.Notes,
	)
	if err != nil {
		return nil, err
	}

	if snap.ID, err = id.ParseSnapshotID(rawID); err != nil {
		return nil, fmt.Errorf("parse snapshot id %q: %w", rawID, err)
	}
	if snap.GoalID, err = id.ParseGoalID(rawGID); err != nil {
		return nil, fmt.Errorf("parse goal id %q: %w", rawGID, err)
	}
	snap.Source = snapshot.Source(source)
	snap.Timestamp = snap.Timestamp.UTC()
	return &snap, nil
}
