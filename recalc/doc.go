// Package recalc recomputes goal progress from metric sources.
//
// A Service loads goals from a goal.Store, asks a metric.Registry for the
// current value of each goal's metric, and persists the new progress. When
// the percentage moves by at least the configured threshold, an event
// snapshot is appended so the forecast history captures intra-day jumps.
//
// Manual goals are never overwritten by recalculation. Manual progress is
// entered through Service.Adjust, which validates the value, switches the
// goal to manual tracking and records a manual snapshot.
package recalc
