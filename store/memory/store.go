package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle in tests), so we verify each subsystem.
var (
	_ goal.Store     = (*Store)(nil)
	_ snapshot.Store = (*Store)(nil)
	_ lock.Store     = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source used for lease expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	clock     clock.Clock
	goals     map[string]*goal.Goal
	snapshots map[string][]*snapshot.Snapshot // key: goal ID
	locks     map[string]*lock.JobLock
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		goals:     make(map[string]*goal.Goal),
		snapshots: make(map[string][]*snapshot.Snapshot),
		locks:     make(map[string]*lock.JobLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Goal Store
// ──────────────────────────────────────────────────

// CreateGoal persists a new goal.
func (m *Store) CreateGoal(_ context.Context, g *goal.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := g.ID.String()
	if _, exists := m.goals[key]; exists {
		return goalpace.ErrDuplicateGoal
	}
	if g.CreatedAt.IsZero() {
		g.Entity = goalpace.NewEntity()
	}
	m.goals[key] = copyGoal(g)
	return nil
}

// GetGoal retrieves a goal by ID.
func (m *Store) GetGoal(_ context.Context, goalID id.GoalID) (*goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.goals[goalID.String()]
	if !ok {
		return nil, goalpace.ErrGoalNotFound
	}
	return copyGoal(g), nil
}

// ListActiveAutoCalculated returns active auto-calculated goals ordered by
// creation time.
func (m *Store) ListActiveAutoCalculated(_ context.Context) ([]*goal.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*goal.Goal
	for _, g := range m.goals {
		if g.IsAutoTracked() {
			result = append(result, copyGoal(g))
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// UpdateComputedFields stores a recalculated progress value.
func (m *Store) UpdateComputedFields(_ context.Context, goalID id.GoalID, progress, percentage float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID.String()]
	if !ok {
		return goalpace.ErrGoalNotFound
	}
	calculated := at
	g.Progress = progress
	g.ProgressPercentage = percentage
	g.LastCalculatedAt = &calculated
	g.CalculationFailed = false
	g.ManualOverrideReason = ""
	g.UpdatedAt = at
	return nil
}

// ApplyManualProgress records a hand-entered progress value.
func (m *Store) ApplyManualProgress(_ context.Context, goalID id.GoalID, progress, percentage float64, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID.String()]
	if !ok {
		return goalpace.ErrGoalNotFound
	}
	calculated := at
	g.Progress = progress
	g.ProgressPercentage = percentage
	g.AutoCalculated = false
	g.ManualOverrideReason = reason
	g.LastCalculatedAt = &calculated
	g.UpdatedAt = at
	return nil
}

// MarkCalculationFailed flags a goal whose metric query failed.
func (m *Store) MarkCalculationFailed(_ context.Context, goalID id.GoalID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID.String()]
	if !ok {
		return goalpace.ErrGoalNotFound
	}
	calculated := at
	g.CalculationFailed = true
	g.LastCalculatedAt = &calculated
	g.UpdatedAt = at
	return nil
}

// ──────────────────────────────────────────────────
// Snapshot Store
// ──────────────────────────────────────────────────

// InsertSnapshot appends a snapshot.
func (m *Store) InsertSnapshot(_ context.Context, s *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.GoalID.String()
	m.snapshots[key] = append(m.snapshots[key], copySnapshot(s))
	return nil
}

// LatestSnapshot returns the most recent snapshot of a goal.
func (m *Store) LatestSnapshot(_ context.Context, goalID id.GoalID) (*snapshot.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *snapshot.Snapshot
	for _, s := range m.snapshots[goalID.String()] {
		if latest == nil || !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}
	if latest == nil {
		return nil, goalpace.ErrSnapshotNotFound
	}
	return copySnapshot(latest), nil
}

// ListSnapshots returns every snapshot of a goal, oldest first.
func (m *Store) ListSnapshots(_ context.Context, goalID id.GoalID) ([]*snapshot.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.snapshots[goalID.String()]
	result := make([]*snapshot.Snapshot, 0, len(src))
	for _, s := range src {
		result = append(result, copySnapshot(s))
	}
	sort.SliceStable(result, func(i, k int) bool {
		return result[i].Timestamp.Before(result[k].Timestamp)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Lock Store
// ──────────────────────────────────────────────────

// TryAcquire claims jobName when no live lease exists.
func (m *Store) TryAcquire(_ context.Context, jobName, holder string, ttl time.Duration) (lock.Lease, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().UTC()
	if l, ok := m.locks[jobName]; ok && l.Held(now) {
		return lock.Lease{}, false, nil
	}

	lease := lock.NewLease(jobName, holder, now, ttl)
	lockedAt, expiresAt := now, lease.ExpiresAt
	m.locks[jobName] = &lock.JobLock{
		JobName:    jobName,
		LockedBy:   holder,
		LockedAt:   &lockedAt,
		ExpiresAt:  &expiresAt,
		LeaseToken: lease.Token,
	}
	return lease, true, nil
}

// Release clears the lock when the lease token is still current.
func (m *Store) Release(_ context.Context, lease lock.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[lease.JobName]
	if !ok || l.LeaseToken != lease.Token {
		return goalpace.ErrStaleLease
	}
	m.locks[lease.JobName] = &lock.JobLock{JobName: lease.JobName}
	return nil
}

// GetLock returns the current lock row.
func (m *Store) GetLock(_ context.Context, jobName string) (*lock.JobLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.locks[jobName]
	if !ok {
		return nil, goalpace.ErrLockNotFound
	}
	cp := *l
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

func copyGoal(g *goal.Goal) *goal.Goal {
	cp := *g
	if g.LastCalculatedAt != nil {
		t := *g.LastCalculatedAt
		cp.LastCalculatedAt = &t
	}
	return &cp
}

func copySnapshot(s *snapshot.Snapshot) *snapshot.Snapshot {
	cp := *s
	return &cp
}
