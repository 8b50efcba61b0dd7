package middleware

import (
	"context"
	"log/slog"
)

// Timeout returns middleware that cancels the run context when the lease
// expires. Jobs observe the deadline between goals, so the write for the
// goal in progress at expiry still completes and nothing after it starts.
// A run without a lease expiry is left unbounded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *Run, next Handler) error {
		if !r.LeaseExpiresAt.IsZero() {
			logger.Debug("run deadline set",
				slog.String("job_name", r.Job),
				slog.Time("deadline", r.LeaseExpiresAt),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, r.LeaseExpiresAt)
			defer cancel()
		}
		return next(ctx)
	}
}
