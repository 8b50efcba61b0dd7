package goalpace

import (
	"fmt"
	"time"
)

// Job names used as lock keys. Every instance competing for the same job
// must use the same name.
const (
	SnapshotJobName = "goal-snapshot-job"
	RecalcJobName   = "goal-progress-calculation-job"
)

// Config holds tunables shared by the schedulers and the recalculation path.
type Config struct {
	// LeaseTTL is how long a job lock is held before it may be taken over.
	LeaseTTL time.Duration

	// SnapshotInterval is the period between daily snapshot runs.
	SnapshotInterval time.Duration

	// RecalcInterval is the period between reconciliation runs.
	RecalcInterval time.Duration

	// RecalcInitialDelay is how long the recalc scheduler waits after start.
	RecalcInitialDelay time.Duration

	// SignificantChange is the percentage-point delta at which a
	// recalculation appends an event snapshot.
	SignificantChange float64

	// StaleAfter is how long since the last calculation before a goal
	// needs attention.
	StaleAfter time.Duration

	// Location decides calendar days and midnight.
	Location *time.Location
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:           5 * time.Minute,
		SnapshotInterval:   24 * time.Hour,
		RecalcInterval:     15 * time.Minute,
		RecalcInitialDelay: 1 * time.Minute,
		SignificantChange:  1.0,
		StaleAfter:         14 * 24 * time.Hour,
		Location:           time.Local,
	}
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.LeaseTTL <= 0:
		return fmt.Errorf("%w: lease ttl must be positive", ErrInvalidConfig)
	case c.SnapshotInterval <= 0:
		return fmt.Errorf("%w: snapshot interval must be positive", ErrInvalidConfig)
	case c.RecalcInterval <= 0:
		return fmt.Errorf("%w: recalc interval must be positive", ErrInvalidConfig)
	case c.RecalcInitialDelay < 0:
		return fmt.Errorf("%w: recalc initial delay must not be negative", ErrInvalidConfig)
	case c.SignificantChange < 0:
		return fmt.Errorf("%w: significant change must not be negative", ErrInvalidConfig)
	case c.StaleAfter <= 0:
		return fmt.Errorf("%w: stale-after must be positive", ErrInvalidConfig)
	case c.Location == nil:
		return fmt.Errorf("%w: location is required", ErrInvalidConfig)
	}
	return nil
}
