// Package ext defines the extension system for goalpace.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnSnapshotCreated(ctx context.Context, s *snapshot.Snapshot) error {
//	    log.Printf("goal %s at %.1f%%", s.GoalID, s.ProgressPercentage)
//	    return nil
//	}
//
// # Goal Hooks
//
//   - [SnapshotCreated]: a progress snapshot was appended
//   - [GoalRecalculated]: a goal's progress was recomputed from its metric
//   - [GoalCalculationFailed]: a metric query failed and the goal was flagged
//
// # Scheduler Hooks
//
//   - [RunCompleted]: a scheduled job activation finished
//   - [RunFailed]: a scheduled job activation returned an error
//   - [LockDenied]: another instance held the job lock
//   - [Shutdown]: the process is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
