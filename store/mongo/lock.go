package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/lock"
)

// TryAcquire claims jobName with one conditional upsert. The filter only
// matches a lock that is free or expired; a held lock makes the upsert
// collide on _id, which is reported as ok=false.
func (s *Store) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	now := s.clock.Now().UTC()
	lease := lock.NewLease(jobName, holder, now, ttl)

	_, err := s.db.Collection(colLocks).UpdateOne(ctx,
		bson.M{
			"_id": jobName,
			"$or": bson.A{
				bson.M{"locked_by": nil},
				bson.M{"expires_at": bson.M{"$lt": now}},
			},
		},
		bson.M{"$set": bson.M{
			"locked_by":   holder,
			"locked_at":   now,
			"expires_at":  lease.ExpiresAt,
			"lease_token": lease.Token,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return lock.Lease{}, false, nil
		}
		return lock.Lease{}, false, fmt.Errorf("goalpace/mongo: acquire lock: %w", err)
	}
	return lease, true, nil
}

// Release clears the lock when the lease token is still current.
func (s *Store) Release(ctx context.Context, lease lock.Lease) error {
	res, err := s.db.Collection(colLocks).UpdateOne(ctx,
		bson.M{"_id": lease.JobName, "lease_token": lease.Token},
		bson.M{"$set": bson.M{
			"locked_by":   nil,
			"locked_at":   nil,
			"expires_at":  nil,
			"lease_token": nil,
		}},
	)
	if err != nil {
		return fmt.Errorf("goalpace/mongo: release lock: %w", err)
	}
	if res.MatchedCount == 0 {
		return goalpace.ErrStaleLease
	}
	return nil
}

// GetLock returns the current lock document.
func (s *Store) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	var m jobLockModel
	err := s.db.Collection(colLocks).FindOne(ctx, bson.M{"_id": jobName}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, goalpace.ErrLockNotFound
		}
		return nil, fmt.Errorf("goalpace/mongo: get lock: %w", err)
	}
	return fromJobLockModel(&m), nil
}
