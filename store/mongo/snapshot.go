package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/snapshot"
)

// InsertSnapshot appends a snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if _, err := s.db.Collection(colSnapshots).InsertOne(ctx, toSnapshotModel(snap)); err != nil {
		return fmt.Errorf("goalpace/mongo: insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of a goal.
func (s *Store) LatestSnapshot(ctx context.Context, goalID id.GoalID) (*snapshot.Snapshot, error) {
	var m snapshotModel
	err := s.db.Collection(colSnapshots).FindOne(ctx,
		bson.M{"goal_id": goalID.String()},
		options.FindOne().SetSort(bson.D{{Key: "snapshot_at", Value: -1}}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, goalpace.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("goalpace/mongo: latest snapshot: %w", err)
	}
	return fromSnapshotModel(&m)
}

// ListSnapshots returns every snapshot of a goal, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, goalID id.GoalID) ([]*snapshot.Snapshot, error) {
	cur, err := s.db.Collection(colSnapshots).Find(ctx,
		bson.M{"goal_id": goalID.String()},
		options.Find().SetSort(bson.D{{Key: "snapshot_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("goalpace/mongo: list snapshots: %w", err)
	}

	var models []snapshotModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("goalpace/mongo: decode snapshots: %w", err)
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
