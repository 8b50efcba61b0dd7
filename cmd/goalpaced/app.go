package main

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/xraph/goalpace/badge"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/forecast"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/middleware"
	"github.com/xraph/goalpace/observability"
	"github.com/xraph/goalpace/recalc"
	"github.com/xraph/goalpace/scheduler"
	"github.com/xraph/goalpace/store"
)

// app is the wired set of components shared by every command.
type app struct {
	settings settings
	logger   *slog.Logger
	store    store.Store
	exts     *ext.Registry
	recalc   *recalc.Service
	forecast *forecast.Service
	badges   *badge.Classifier
	closers  closers
}

// newApp opens the backends and builds the services. Callers must call
// close when done.
func newApp(ctx context.Context, s settings, logger *slog.Logger) (*app, error) {
	a := &app{settings: s, logger: logger}

	st, pool, err := openStore(ctx, s, logger, &a.closers)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.store = st

	metrics, err := openMetrics(ctx, s, pool, logger, &a.closers)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	a.exts = ext.NewRegistry(logger)
	a.exts.Register(observability.NewMetricsExtension())

	opts := []recalc.Option{
		recalc.WithLogger(logger),
		recalc.WithExtensions(a.exts),
		recalc.WithSignificantChange(s.Core.SignificantChange),
	}
	if s.RecalcRate > 0 {
		opts = append(opts, recalc.WithLimiter(rate.NewLimiter(rate.Limit(s.RecalcRate), max(s.RecalcBurst, 1))))
	}
	a.recalc = recalc.New(st, st, metrics, opts...)

	a.forecast = forecast.NewService(st, st, forecast.NewEngine())
	a.badges = badge.NewClassifier(badge.WithStaleAfter(s.Core.StaleAfter))
	return a, nil
}

// schedulers builds the snapshot and recalculation schedulers sharing one
// holder identity.
func (a *app) schedulers() []*scheduler.Scheduler {
	holder := lock.NewHolderID()
	common := []scheduler.Option{
		scheduler.WithHolder(holder),
		scheduler.WithLeaseTTL(a.settings.Core.LeaseTTL),
		scheduler.WithLocation(a.settings.Core.Location),
		scheduler.WithClock(clock.Real()),
		scheduler.WithLogger(a.logger),
		scheduler.WithExtensions(a.exts),
		scheduler.WithMiddleware(
			middleware.Logging(a.logger),
			middleware.Tracing(),
			middleware.Metrics(),
		),
	}

	snap := scheduler.NewSnapshotScheduler(a.store, append(common,
		scheduler.WithInterval(a.settings.Core.SnapshotInterval),
	)...)
	rc := scheduler.NewRecalcScheduler(a.store, a.recalc, append(common,
		scheduler.WithInterval(a.settings.Core.RecalcInterval),
		scheduler.WithInitialDelay(a.settings.Core.RecalcInitialDelay),
	)...)
	return []*scheduler.Scheduler{snap, rc}
}

func (a *app) close() error { return a.closers.close() }
