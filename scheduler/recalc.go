package scheduler

import (
	"context"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/recalc"
)

// NewRecalcScheduler creates the progress recalculation job. It first runs
// after one minute, then every 15 minutes.
func NewRecalcScheduler(locks lock.Store, svc *recalc.Service, opts ...Option) *Scheduler {
	run := func(ctx context.Context) (goalpace.RunReport, error) {
		sum, err := svc.RecalculateAll(ctx)
		return sum.Report(goalpace.RecalcJobName), err
	}
	defaults := []Option{
		WithInterval(15 * time.Minute),
		WithInitialDelay(time.Minute),
	}
	return New(goalpace.RecalcJobName, locks, run, append(defaults, opts...)...)
}
