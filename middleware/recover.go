package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *Run, next Handler) (retErr error) {
		defer func() {
			if p := recover(); p != nil {
				stack := string(debug.Stack())
				logger.Error("run handler panicked",
					slog.String("job_name", r.Job),
					slog.String("holder", r.Holder),
					slog.Any("panic", p),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in job %s: %v", r.Job, p)
			}
		}()
		return next(ctx)
	}
}
