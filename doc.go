// Package goalpace tracks progress of business goals over time and predicts
// whether each goal will be met by its deadline.
//
// Two recurring jobs keep goal data fresh: a daily snapshot writer and a
// periodic recalculator that reconciles progress against CRM metrics. Both
// run behind a lease-based distributed lock so that any number of service
// instances can be deployed without double-executing scheduled work.
//
// # Quick Start
//
//	st := memory.New()
//	metrics := crmsql.NewRegistry(pool)
//	svc := recalc.New(st, st, metrics, recalc.WithLogger(logger))
//
//	snaps := scheduler.NewSnapshotScheduler(st, scheduler.WithLogger(logger))
//	recalcs := scheduler.NewRecalcScheduler(st, svc, scheduler.WithLogger(logger))
//	_ = snaps.Start(ctx)
//	_ = recalcs.Start(ctx)
//	defer snaps.Stop(ctx)
//	defer recalcs.Stop(ctx)
//
// # Architecture
//
// Each subsystem (goal, snapshot, lock) defines its own store interface and
// a single backend implements all of them through store.Store. The forecast,
// velocity and badge packages are pure read-side computations driven by an
// injectable clock.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package goalpace
