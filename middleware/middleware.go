// Package middleware provides composable middleware for scheduled job runs.
// Middleware wraps a run synchronously and can modify execution (recover
// from panics, bound the run by its lease, log, add tracing, etc.).
package middleware

import (
	"context"
	"time"
)

// Run describes one lock-guarded activation of a scheduled job.
type Run struct {
	// Job is the job name, which is also the lock key.
	Job string
	// Holder is the identity that acquired the lock.
	Holder string
	// LeaseToken identifies the acquisition.
	LeaseToken string
	// LeaseExpiresAt is when the lock may be taken over by another holder.
	LeaseExpiresAt time.Time
}

// Handler is the terminal function that executes the run.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the run being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, r *Run, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, r *Run, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, r, prev)
			}
		}
		return h(ctx)
	}
}
