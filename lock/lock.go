// Package lock defines the lease-based distributed lock that keeps a named
// recurring job from running on more than one instance at a time.
//
// A lock row is keyed by job name. TryAcquire claims it only when the row
// has no holder or its lease has expired, in a single atomic conditional
// write against the backing store. Each successful acquisition carries a
// fresh lease token and Release clears the row only when that token still
// matches, so a holder whose lease expired and was taken over cannot clear
// the new holder's claim.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xraph/goalpace/id"
)

// DefaultTTL is the lease duration used when callers pass zero.
const DefaultTTL = 5 * time.Minute

// JobLock is the persisted state of one named job's lock.
type JobLock struct {
	JobName    string     `json:"job_name"`
	LockedBy   string     `json:"locked_by,omitempty"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LeaseToken string     `json:"lease_token,omitempty"`
}

// Held reports whether the lock is currently claimed at now.
func (l *JobLock) Held(now time.Time) bool {
	if l == nil || l.LockedBy == "" || l.ExpiresAt == nil {
		return false
	}
	return !l.ExpiresAt.Before(now)
}

// Lease is the proof of one successful acquisition.
type Lease struct {
	JobName   string
	Holder    string
	Token     string
	ExpiresAt time.Time
}

// Store defines the persistence contract for job locks.
type Store interface {
	// TryAcquire claims jobName for holder when the lock is available.
	// Denial is reported as ok=false with a nil error.
	TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (Lease, bool, error)

	// Release clears the lock when lease.Token is still current. A stale
	// token yields goalpace.ErrStaleLease and leaves the row untouched.
	Release(ctx context.Context, lease Lease) error

	// GetLock returns the current lock row, or goalpace.ErrLockNotFound.
	GetLock(ctx context.Context, jobName string) (*JobLock, error)
}

// NewLease builds a lease with a fresh token.
func NewLease(jobName, holder string, now time.Time, ttl time.Duration) Lease {
	return Lease{
		JobName:   jobName,
		Holder:    holder,
		Token:     id.NewLeaseToken().String(),
		ExpiresAt: now.Add(NormalizeTTL(ttl)),
	}
}

// NormalizeTTL substitutes DefaultTTL for non-positive durations.
func NormalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// NewHolderID returns an identity for this process of the form
// "hostname/inst_<typeid>". The instance suffix keeps two processes on the
// same host distinct.
func NewHolderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s", host, id.NewInstanceID())
}
