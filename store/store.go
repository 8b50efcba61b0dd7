package store

import (
	"context"
	"time"

	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// Store is the aggregate persistence interface.
// A single backend (postgres, bun, mongo, etc.) implements all of them.
type Store interface {
	goal.Store
	snapshot.Store
	lock.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// WithLocks returns a Store whose lock operations go to locks while goal
// and snapshot operations stay on base. Use it to pair a relational backend
// with a lock-only backend such as NATS.
func WithLocks(base Store, locks lock.Store) Store {
	return &splitStore{Store: base, locks: locks}
}

type splitStore struct {
	Store
	locks lock.Store
}

func (s *splitStore) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	return s.locks.TryAcquire(ctx, jobName, holder, ttl)
}

func (s *splitStore) Release(ctx context.Context, lease lock.Lease) error {
	return s.locks.Release(ctx, lease)
}

func (s *splitStore) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	return s.locks.GetLock(ctx, jobName)
}
