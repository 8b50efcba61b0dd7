package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/lock"
)

// TryAcquire claims jobName in one statement. The row is created when
// missing and overwritten only when it has no holder or its lease expired
// by the database clock. No row returned means another holder is live.
func (s *Store) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	ttl = lock.NormalizeTTL(ttl)
	lease := lock.NewLease(jobName, holder, time.Now(), ttl)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO goalpace_job_locks (job_name, locked_by, locked_at, expires_at, lease_token)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3), $4)
		ON CONFLICT (job_name) DO UPDATE
		SET locked_by   = EXCLUDED.locked_by,
		    locked_at   = EXCLUDED.locked_at,
		    expires_at  = EXCLUDED.expires_at,
		    lease_token = EXCLUDED.lease_token
		WHERE goalpace_job_locks.locked_by IS NULL
		   OR goalpace_job_locks.expires_at < NOW()
		RETURNING expires_at`,
		jobName, holder, ttl.Seconds(), lease.Token,
	).Scan(&lease.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return lock.Lease{}, false, nil
		}
		return lock.Lease{}, false, fmt.Errorf("goalpace/postgres: acquire lock: %w", err)
	}
	return lease, true, nil
}

// Release clears the lock when the lease token is still current.
func (s *Store) Release(ctx context.Context, lease lock.Lease) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE goalpace_job_locks
		SET locked_by = NULL, locked_at = NULL, expires_at = NULL, lease_token = NULL
		WHERE job_name = $1 AND lease_token = $2`,
		lease.JobName, lease.Token,
	)
	if err != nil {
		return fmt.Errorf("goalpace/postgres: release lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goalpace.ErrStaleLease
	}
	return nil
}

// GetLock returns the current lock row.
func (s *Store) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	var (
		l               lock.JobLock
		lockedBy, token *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT job_name, locked_by, locked_at, expires_at, lease_token
		FROM goalpace_job_locks WHERE job_name = $1`,
		jobName,
	).Scan(&l.JobName, &lockedBy, &l.LockedAt, &l.ExpiresAt, &token)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrLockNotFound
		}
		return nil, fmt.Errorf("goalpace/postgres: get lock: %w", err)
	}
	if lockedBy != nil {
		l.LockedBy = *lockedBy
	}
	if token != nil {
		l.LeaseToken = *token
	}
	return &l, nil
}
