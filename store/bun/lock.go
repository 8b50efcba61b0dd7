package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/lock"
)

// TryAcquire claims jobName in one upsert statement evaluated against the
// database clock. No row returned means another holder is live.
func (s *Store) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	ttl = lock.NormalizeTTL(ttl)
	lease := lock.NewLease(jobName, holder, time.Now(), ttl)

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO goalpace_job_locks (job_name, locked_by, locked_at, expires_at, lease_token)
		VALUES (?, ?, NOW(), NOW() + make_interval(secs => ?), ?)
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
		return lock.Lease{}, false, fmt.Errorf("goalpace/bun: acquire lock: %w", err)
	}
	return lease, true, nil
}

// Release clears the lock when the lease token is still current.
func (s *Store) Release(ctx context.Context, lease lock.Lease) error {
	res, err := s.db.NewUpdate().Model((*jobLockModel)(nil)).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("expires_at = NULL").
		Set("lease_token = NULL").
		Where("job_name = ?", lease.JobName).
		Where("lease_token = ?", lease.Token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("goalpace/bun: release lock: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return goalpace.ErrStaleLease
	}
	return nil
}

// GetLock returns the current lock row.
func (s *Store) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	m := new(jobLockModel)
	err := s.db.NewSelect().Model(m).
		Where("job_name = ?", jobName).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, goalpace.ErrLockNotFound
		}
		return nil, fmt.Errorf("goalpace/bun: get lock: %w", err)
	}
	return fromJobLockModel(m), nil
}
