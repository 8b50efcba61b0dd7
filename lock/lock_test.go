package lock_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/goalpace/lock"
)

func TestJobLockHeld(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name string
		lock *lock.JobLock
		want bool
	}{
		{"nil", nil, false},
		{"no holder", &lock.JobLock{JobName: "j", ExpiresAt: &later}, false},
		{"expired", &lock.JobLock{JobName: "j", LockedBy: "a", ExpiresAt: &earlier}, false},
		{"expires exactly now", &lock.JobLock{JobName: "j", LockedBy: "a", ExpiresAt: &now}, true},
		{"held", &lock.JobLock{JobName: "j", LockedBy: "a", ExpiresAt: &later}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lock.Held(now); got != tt.want {
				t.Errorf("Held() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLease(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a := lock.NewLease("job", "holder", now, 0)
	if want := now.Add(lock.DefaultTTL); !a.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", a.ExpiresAt, want)
	}
	if !strings.HasPrefix(a.Token, "lease_") {
		t.Errorf("Token = %q, want lease_ prefix", a.Token)
	}

	b := lock.NewLease("job", "holder", now, time.Minute)
	if a.Token == b.Token {
		t.Error("expected distinct tokens for distinct acquisitions")
	}
}

func TestNewHolderID(t *testing.T) {
	a, b := lock.NewHolderID(), lock.NewHolderID()
	if a == b {
		t.Errorf("holder ids collide: %q", a)
	}
	if !strings.Contains(a, "/inst_") {
		t.Errorf("holder id %q missing instance suffix", a)
	}
}
