package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs run start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *Run, next Handler) error {
		logger.Info("run started",
			slog.String("job_name", r.Job),
			slog.String("holder", r.Holder),
			slog.Time("lease_expires_at", r.LeaseExpiresAt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("run failed",
				slog.String("job_name", r.Job),
				slog.String("holder", r.Holder),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("run completed",
				slog.String("job_name", r.Job),
				slog.String("holder", r.Holder),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
