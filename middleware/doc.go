// Package middleware provides composable middleware for scheduled job runs.
//
// A [Middleware] is a function that wraps a run handler. Middleware are
// composed into a chain using [Chain] and applied each time a scheduler
// wins its lock. They are applied right-to-left: the first middleware in
// the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job name, holder, duration, and outcome of each run
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: cancels the run context when the lease expires
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-run duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, r *middleware.Run, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
