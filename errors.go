package goalpace

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("goalpace: no store configured")
	ErrMigrationFailed = errors.New("goalpace: migration failed")

	// Not found errors.
	ErrGoalNotFound     = errors.New("goalpace: goal not found")
	ErrSnapshotNotFound = errors.New("goalpace: snapshot not found")
	ErrLockNotFound     = errors.New("goalpace: job lock not found")

	// Conflict errors.
	ErrDuplicateGoal = errors.New("goalpace: goal already exists")
	ErrStaleLease    = errors.New("goalpace: lease token does not match current holder")

	// Calculation errors.
	ErrUnsupportedMetric = errors.New("goalpace: unsupported metric type")
	ErrInvalidAdjustment = errors.New("goalpace: invalid manual adjustment")

	// Configuration errors.
	ErrInvalidConfig = errors.New("goalpace: invalid configuration")
)
