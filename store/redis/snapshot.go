package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// InsertSnapshot appends a snapshot to the goal's Sorted Set, scored by its
// timestamp in milliseconds.
func (s *Store) InsertSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("goalpace/redis: marshal snapshot: %w", err)
	}
	z := goredis.Z{Score: float64(snap.Timestamp.UnixMilli()), Member: data}
	if err := s.client.ZAdd(ctx, snapshotsKey(snap.GoalID.String()), z).Err(); err != nil {
		return fmt.Errorf("goalpace/redis: insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a goal.
func (s *Store) LatestSnapshot(ctx context.Context, goalID id.GoalID) (*snapshot.Snapshot, error) {
	members, err := s.client.ZRevRange(ctx, snapshotsKey(goalID.String()), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("goalpace/redis: latest snapshot: %w", err)
	}
	if len(members) == 0 {
		return nil, goalpace.ErrSnapshotNotFound
	}
	return decodeSnapshot(members[0])
}

// ListSnapshots returns every snapshot of a goal, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, goalID id.GoalID) ([]*snapshot.Snapshot, error) {
	members, err := s.client.ZRange(ctx, snapshotsKey(goalID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("goalpace/redis: list snapshots: %w", err)
	}

	snaps := make([]*snapshot.Snapshot, 0, len(members))
	for _, m := range members {
		snap, decErr := decodeSnapshot(m)
		if decErr != nil {
			return nil, decErr
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func decodeSnapshot(member string) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := json.Unmarshal([]byte(member), &snap); err != nil {
		return nil, fmt.Errorf("goalpace/redis: decode snapshot: %w", err)
	}
	return &snap, nil
}
