package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
)

// acquireScript claims KEYS[1] when it has no holder or its lease expired.
// Times are milliseconds on the Redis server clock. It returns nil on
// denial and {locked_at, expires_at} on success.
//
// ARGV: job name, ttl ms, holder, lease token.
var acquireScript = goredis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local holder = redis.call('HGET', KEYS[1], 'locked_by')
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0') or 0
if holder and holder ~= '' and exp >= now then
  return false
end
local expires = now + tonumber(ARGV[2])
redis.call('HSET', KEYS[1],
  'job_name', ARGV[1],
  'locked_by', ARGV[3],
  'locked_at', now,
  'expires_at', expires,
  'lease_token', ARGV[4])
return {now, expires}
`)

// releaseScript clears the holder fields of KEYS[1] only when ARGV[1] is
// the current lease token. It returns 1 when cleared and 0 otherwise.
var releaseScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'lease_token') ~= ARGV[1] then
  return 0
end
redis.call('HDEL', KEYS[1], 'locked_by', 'locked_at', 'expires_at', 'lease_token')
return 1
`)

// TryAcquire claims jobName for holder with a single Lua script.
func (s *Store) TryAcquire(ctx context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	token := id.NewLeaseToken().String()
	ttlMs := lock.NormalizeTTL(ttl).Milliseconds()

	res, err := acquireScript.Run(ctx, s.client, []string{lockKey(jobName)},
		jobName, ttlMs, holder, token,
	).Int64Slice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return lock.Lease{}, false, nil
		}
		return lock.Lease{}, false, fmt.Errorf("goalpace/redis: acquire lock: %w", err)
	}
	if len(res) != 2 {
		return lock.Lease{}, false, fmt.Errorf("goalpace/redis: acquire lock: unexpected reply %v", res)
	}

	return lock.Lease{
		JobName:   jobName,
		Holder:    holder,
		Token:     token,
		ExpiresAt: time.UnixMilli(res[1]).UTC(),
	}, true, nil
}

// Release clears the lock if lease.Token still matches.
func (s *Store) Release(ctx context.Context, lease lock.Lease) error {
	n, err := releaseScript.Run(ctx, s.client, []string{lockKey(lease.JobName)}, lease.Token).Int64()
	if err != nil {
		return fmt.Errorf("goalpace/redis: release lock: %w", err)
	}
	if n == 0 {
		return goalpace.ErrStaleLease
	}
	return nil
}

// GetLock returns the current lock hash.
func (s *Store) GetLock(ctx context.Context, jobName string) (*lock.JobLock, error) {
	fields, err := s.client.HGetAll(ctx, lockKey(jobName)).Result()
	if err != nil {
		return nil, fmt.Errorf("goalpace/redis: get lock: %w", err)
	}
	if len(fields) == 0 {
		return nil, goalpace.ErrLockNotFound
	}

	l := &lock.JobLock{
		JobName:    jobName,
		LockedBy:   fields["locked_by"],
		LeaseToken: fields["lease_token"],
	}
	if l.LockedAt, err = parseMillis(fields["locked_at"]); err != nil {
		return nil, fmt.Errorf("goalpace/redis: parse locked_at: %w", err)
	}
	if l.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("goalpace/redis: parse expires_at: %w", err)
	}
	return l, nil
}

func parseMillis(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
