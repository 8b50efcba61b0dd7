package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/lock"
)

// DefaultBucket is the KV bucket name used when Open is given none.
const DefaultBucket = "goalpace_locks"

var _ lock.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used for lease expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a lock.Store backed by a JetStream KV bucket.
type Store struct {
	kv     jetstream.KeyValue
	clock  clock.Clock
	logger *slog.Logger
}

// New wraps an existing KV bucket.
func New(kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{kv: kv, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.clock = clock.OrReal(s.clock)
	return s
}

// Open creates the bucket if needed and returns a Store on it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "goalpace job locks",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("goalpace/nats: open bucket %s: %w", bucket, err)
	}
	return New(kv, opts...), nil
}

// TryAcquire claims jobName for holder by compare-and-set on the key's
// revision.
func (s *Store) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	now := s.clock.Now().UTC()
	lease := lock.NewLease(jobName, holder, now, ttl)
	data, err := json.Marshal(&lock.JobLock{
		JobName:    jobName,
		LockedBy:   holder,
		LockedAt:   &now,
		ExpiresAt:  &lease.ExpiresAt,
		LeaseToken: lease.Token,
	})
	if err != nil {
		return lock.Lease{}, false, fmt.Errorf("goalpace/nats: encode lock: %w", err)
	}

	entry, err := s.kv.Get(ctx, jobName)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		if _, err := s.kv.Create(ctx, jobName, data); err != nil {
			if errors.Is(err, jetstream.ErrKeyExists) {
				return lock.Lease{}, false, nil
			}
			return lock.Lease{}, false, fmt.Errorf("goalpace/nats: create lock: %w", err)
		}
		return lease, true, nil
	case err != nil:
		return lock.Lease{}, false, fmt.Errorf("goalpace/nats: get lock: %w", err)
	}

	current, err := decodeLock(entry.Value())
	if err != nil {
		return lock.Lease{}, false, err
	}
	if current.Held(now) {
		return lock.Lease{}, false, nil
	}

	if _, err := s.kv.Update(ctx, jobName, data, entry.Revision()); err != nil {
		if isRevisionConflict(err) {
			return lock.Lease{}, false, nil
		}
		return lock.Lease{}, false, fmt.Errorf("goalpace/nats: update lock: %w", err)
	}
	return lease, true, nil
}

// Release clears the holder when lease.Token is still current.
func (s *Store) Release(ctx context.Context, lease lock.Lease) error {
	entry, err := s.kv.Get(ctx, lease.JobName)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return goalpace.ErrStaleLease
		}
		return fmt.Errorf("goalpace/nats: get lock: %w", err)
	}

	current, err := decodeLock(entry.Value())
	if err != nil {
		return err
	}
	if current.LeaseToken != lease.Token {
		return goalpace.ErrStaleLease
	}

	data, err := json.Marshal(&lock.JobLock{JobName: lease.JobName})
	if err != nil {
		return fmt.Errorf("goalpace/nats: encode lock: %w", err)
	}
	if _, err := s.kv.Update(ctx, lease.JobName, data, entry.Revision()); err != nil {
		if isRevisionConflict(err) {
			return goalpace.ErrStaleLease
		}
		return fmt.Errorf("goalpace/nats: release lock: %w", err)
	}
	return nil
}

// GetLock returns the current lock value.
func (s *Store) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	entry, err := s.kv.Get(ctx, jobName)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, goalpace.ErrLockNotFound
		}
		return nil, fmt.Errorf("goalpace/nats: get lock: %w", err)
	}
	return decodeLock(entry.Value())
}

func decodeLock(raw []byte) (*lock.JobLock, error) {
	var l lock.JobLock
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("goalpace/nats: decode lock: %w", err)
	}
	return &l, nil
}

// isRevisionConflict reports whether an Update lost the compare-and-set.
func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
