// Package goal defines the goal entity and its persistence contract.
//
// A goal's progress is either entered manually or derived from a metric
// source by the recalculation path. ProgressPercentage is always derived
// from Progress and TargetValue through SetProgress.
package goal
