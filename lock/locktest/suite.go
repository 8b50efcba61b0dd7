// Package locktest holds a behavioural suite shared by every lock.Store
// backend.
package locktest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/lock"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) lock.Store

// Run exercises acquisition, denial, expiry takeover and token-checked
// release against the store produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("AcquireMissingRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		lease, ok, err := s.TryAcquire(ctx, "job-a", "holder-1", time.Minute)
		if err != nil {
			t.Fatalf("TryAcquire: %v", err)
		}
		if !ok {
			t.Fatal("expected acquisition on a missing row")
		}
		if lease.Token == "" || lease.Holder != "holder-1" || lease.JobName != "job-a" {
			t.Errorf("unexpected lease %+v", lease)
		}

		got, err := s.GetLock(ctx, "job-a")
		if err != nil {
			t.Fatalf("GetLock: %v", err)
		}
		if got.LockedBy != "holder-1" {
			t.Errorf("LockedBy = %q, want holder-1", got.LockedBy)
		}
		if got.LeaseToken != lease.Token {
			t.Errorf("LeaseToken = %q, want %q", got.LeaseToken, lease.Token)
		}
	})

	t.Run("DenyWhileHeld", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, ok, err := s.TryAcquire(ctx, "job-b", "holder-1", time.Minute); err != nil || !ok {
			t.Fatalf("first TryAcquire: ok=%v err=%v", ok, err)
		}
		_, ok, err := s.TryAcquire(ctx, "job-b", "holder-2", time.Minute)
		if err != nil {
			t.Fatalf("second TryAcquire: %v", err)
		}
		if ok {
			t.Fatal("expected denial while lease is live")
		}

		got, err := s.GetLock(ctx, "job-b")
		if err != nil {
			t.Fatalf("GetLock: %v", err)
		}
		if got.LockedBy != "holder-1" {
			t.Errorf("denied attempt changed holder to %q", got.LockedBy)
		}
	})

	t.Run("TakeoverAfterExpiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, ok, err := s.TryAcquire(ctx, "job-c", "holder-1", 50*time.Millisecond); err != nil || !ok {
			t.Fatalf("first TryAcquire: ok=%v err=%v", ok, err)
		}
		time.Sleep(150 * time.Millisecond)

		_, ok, err := s.TryAcquire(ctx, "job-c", "holder-2", time.Minute)
		if err != nil {
			t.Fatalf("TryAcquire after expiry: %v", err)
		}
		if !ok {
			t.Fatal("expected takeover of expired lease")
		}
	})

	t.Run("ReleaseThenReacquire", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		lease, ok, err := s.TryAcquire(ctx, "job-d", "holder-1", time.Minute)
		if err != nil || !ok {
			t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
		}
		if err := s.Release(ctx, lease); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if _, ok, err := s.TryAcquire(ctx, "job-d", "holder-2", time.Minute); err != nil || !ok {
			t.Fatalf("TryAcquire after release: ok=%v err=%v", ok, err)
		}
	})

	t.Run("StaleTokenRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		old, ok, err := s.TryAcquire(ctx, "job-e", "holder-1", 50*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
		}
		time.Sleep(150 * time.Millisecond)

		current, ok, err := s.TryAcquire(ctx, "job-e", "holder-2", time.Minute)
		if err != nil || !ok {
			t.Fatalf("takeover: ok=%v err=%v", ok, err)
		}

		if err := s.Release(ctx, old); !errors.Is(err, goalpace.ErrStaleLease) {
			t.Fatalf("Release(stale) = %v, want ErrStaleLease", err)
		}

		got, err := s.GetLock(ctx, "job-e")
		if err != nil {
			t.Fatalf("GetLock: %v", err)
		}
		if got.LockedBy != "holder-2" || got.LeaseToken != current.Token {
			t.Errorf("stale release disturbed new holder: %+v", got)
		}
	})

	t.Run("SameHolderCannotReenter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, ok, err := s.TryAcquire(ctx, "job-f", "holder-1", time.Minute); err != nil || !ok {
			t.Fatalf("TryAcquire: ok=%v err=%v", ok, err)
		}
		if _, ok, _ := s.TryAcquire(ctx, "job-f", "holder-1", time.Minute); ok {
			t.Error("expected re-entry by same holder to be denied")
		}
	})

	t.Run("GetLockMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetLock(context.Background(), "nope"); !errors.Is(err, goalpace.ErrLockNotFound) {
			t.Errorf("GetLock(missing) = %v, want ErrLockNotFound", err)
		}
	})

	t.Run("ConcurrentAcquireSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const contenders = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range contenders {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, ok, err := s.TryAcquire(ctx, "job-g", string(rune('a'+n)), time.Minute)
				if err != nil {
					t.Errorf("TryAcquire: %v", err)
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("winners = %d, want exactly 1", wins)
		}
	})
}
