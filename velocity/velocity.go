// Package velocity derives a progress rate from an irregularly sampled
// series of progress values.
package velocity

import (
	"slices"
	"time"
)

const day = 24 * time.Hour

// Point is one observation of a goal's progress.
type Point struct {
	At    time.Time
	Value float64
}

// Result is the computed rate of progress.
type Result struct {
	// Daily is the mean of the per-pair rates, in value units per day.
	Daily float64 `json:"daily"`
	// Weekly is Daily * 7.
	Weekly float64 `json:"weekly"`
	// Pairs is the number of adjacent pairs that contributed a rate.
	Pairs int `json:"pairs"`
}

// Calculate sorts points by time and averages the rate of change between
// each adjacent pair. Pairs that are not strictly increasing in time are
// discarded. With fewer than two usable points the rate is zero. The input
// slice is not modified and the result does not depend on its order.
func Calculate(points []Point) Result {
	if len(points) < 2 {
		return Result{}
	}

	sorted := slices.Clone(points)
	slices.SortFunc(sorted, func(a, b Point) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	})

	var (
		sum   float64
		pairs int
	)
	for i := 1; i < len(sorted); i++ {
		deltaDays := float64(sorted[i].At.Sub(sorted[i-1].At)) / float64(day)
		if deltaDays <= 0 {
			continue
		}
		sum += (sorted[i].Value - sorted[i-1].Value) / deltaDays
		pairs++
	}
	if pairs == 0 {
		return Result{}
	}

	daily := sum / float64(pairs)
	return Result{Daily: daily, Weekly: daily * 7, Pairs: pairs}
}
