package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/backoff"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/ext"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/middleware"
)

// releaseAttempts bounds lock release retries. A lock that still cannot be
// released is recovered by lease expiry.
const releaseAttempts = 3

// RunFunc performs one granted activation of a job.
type RunFunc func(ctx context.Context) (goalpace.RunReport, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the period between activations.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithLeaseTTL sets the lock lease duration.
func WithLeaseTTL(d time.Duration) Option {
	return func(s *Scheduler) { s.leaseTTL = d }
}

// WithInitialDelay sets a fixed delay before the first activation.
func WithInitialDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		s.firstDelay = func(time.Time) time.Duration { return d }
	}
}

// WithHolder overrides the lock holder identity.
func WithHolder(holder string) Option {
	return func(s *Scheduler) { s.holder = holder }
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithExtensions sets the hook registry.
func WithExtensions(r *ext.Registry) Option {
	return func(s *Scheduler) { s.exts = r }
}

// WithMiddleware appends run middleware. The first middleware given is the
// outermost wrapper, inside the default recover and timeout.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.middleware = append(s.middleware, mws...) }
}

// WithLocation sets the time zone used for calendar-day decisions.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithReleaseBackoff sets the delay strategy for lock release retries.
func WithReleaseBackoff(b backoff.Strategy) Option {
	return func(s *Scheduler) { s.releaseBackoff = b }
}

// Scheduler runs one named job on an interval under a lease lock.
type Scheduler struct {
	name   string
	locks  lock.Store
	run    RunFunc
	holder string

	interval       time.Duration
	leaseTTL       time.Duration
	firstDelay     func(now time.Time) time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	exts           *ext.Registry
	middleware     []middleware.Middleware
	location       *time.Location
	releaseBackoff backoff.Strategy

	chain middleware.Middleware

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler for the job name, guarded by the lock of the
// same name.
func New(name string, locks lock.Store, run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:       name,
		locks:      locks,
		run:        run,
		interval:   24 * time.Hour,
		leaseTTL:   lock.DefaultTTL,
		firstDelay: func(time.Time) time.Duration { return 0 },
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.holder == "" {
		s.holder = lock.NewHolderID()
	}
	if s.releaseBackoff == nil {
		s.releaseBackoff = backoff.DefaultStrategy()
	}
	s.leaseTTL = lock.NormalizeTTL(s.leaseTTL)

	mws := append([]middleware.Middleware{
		middleware.Recover(s.logger),
		middleware.Timeout(s.logger),
	}, s.middleware...)
	s.chain = middleware.Chain(mws...)
	return s
}

// Name returns the job name.
func (s *Scheduler) Name() string { return s.name }

// Holder returns the lock holder identity of this scheduler.
func (s *Scheduler) Holder() string { return s.holder }

// Start launches the scheduling goroutine. Runs inherit ctx values but not
// its cancellation; call Stop to end the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler %s: already started", s.name)
	}
	s.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("scheduler started",
		slog.String("job_name", s.name),
		slog.String("holder", s.holder),
		slog.Duration("interval", s.interval),
	)
	return nil
}

// Stop signals the loop to exit and waits for it, including any in-flight
// run, until ctx is done. An in-flight run stops before its next goal; the
// write for the current goal completes.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("scheduler %s: stop: %w", s.name, ctx.Err())
	}

	s.logger.Info("scheduler stopped", slog.String("job_name", s.name))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	delay := s.firstDelay(s.clock.Now())
	if delay > 0 {
		s.logger.Info("first run scheduled",
			slog.String("job_name", s.name),
			slog.Duration("delay", delay),
		)
		if !s.sleep(delay) {
			return
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduled run failed",
				slog.String("job_name", s.name),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// RunOnce performs one activation: acquire the lock, run, release. ran is
// false when another holder owns the lock, which is not an error.
func (s *Scheduler) RunOnce(ctx context.Context) (report goalpace.RunReport, ran bool, err error) {
	lease, ok, err := s.locks.TryAcquire(ctx, s.name, s.holder, s.leaseTTL)
	if err != nil {
		err = fmt.Errorf("acquire lock %s: %w", s.name, err)
		s.exts.EmitRunFailed(ctx, s.name, err)
		return goalpace.RunReport{Job: s.name}, false, err
	}
	if !ok {
		s.logger.Info("job lock held by another instance, skipping",
			slog.String("job_name", s.name),
			slog.String("holder", s.holder),
		)
		s.exts.EmitLockDenied(ctx, s.name, s.holder)
		return goalpace.RunReport{Job: s.name}, false, nil
	}
	defer s.release(ctx, lease)

	r := &middleware.Run{
		Job:            s.name,
		Holder:         s.holder,
		LeaseToken:     lease.Token,
		LeaseExpiresAt: lease.ExpiresAt,
	}
	err = s.chain(ctx, r, func(ctx context.Context) error {
		var runErr error
		report, runErr = s.run(ctx)
		return runErr
	})
	report.Job = s.name

	if err != nil {
		s.exts.EmitRunFailed(ctx, s.name, err)
		return report, true, err
	}

	s.logger.Info("job run completed",
		slog.String("job_name", s.name),
		slog.Any("report", report),
	)
	s.exts.EmitRunCompleted(ctx, report)
	return report, true, nil
}

func (s *Scheduler) release(ctx context.Context, lease lock.Lease) {
	ctx = context.WithoutCancel(ctx)
	err := backoff.Retry(ctx, releaseAttempts, s.releaseBackoff, func(ctx context.Context) error {
		if err := s.locks.Release(ctx, lease); err != nil {
			if errors.Is(err, goalpace.ErrStaleLease) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, goalpace.ErrStaleLease):
		s.logger.Warn("lease expired before release, lock now held elsewhere",
			slog.String("job_name", s.name),
			slog.String("holder", s.holder),
		)
	default:
		s.logger.Error("lock release failed, leaving it to lease expiry",
			slog.String("job_name", s.name),
			slog.String("holder", s.holder),
			slog.String("error", err.Error()),
		)
	}
}
