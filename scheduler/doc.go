// Package scheduler runs recurring jobs under a distributed lease lock.
//
// A Scheduler owns one goroutine that waits an initial delay, then fires on
// a fixed interval. Each activation tries to acquire the job's lock; when
// another instance holds it the activation is skipped. Granted runs go
// through a middleware chain (recover and lease-bounded timeout by default)
// and the lock is released on a context detached from cancellation, so a
// shutdown mid-run still frees the lock for the next instance.
//
// Two constructors wire the goal jobs:
//
//   - NewSnapshotScheduler appends one daily snapshot per active
//     auto-calculated goal, first firing at the next local midnight.
//   - NewRecalcScheduler recomputes goal progress from metric sources.
package scheduler
