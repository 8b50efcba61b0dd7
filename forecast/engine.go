package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/velocity"
)

const (
	day = 24 * time.Hour

	// aheadMargin is how far above the required pace counts as ahead.
	aheadMargin = 1.2

	// minDataPoints is the history length below which no forecast is made.
	minDataPoints = 2
)

// facts are the intermediate values the status rules inspect.
type facts struct {
	now        time.Time
	endDate    time.Time
	remaining  float64
	daily      float64
	required   float64
	estimate   *time.Time
	dataPoints int
}

type rule struct {
	status Status
	match  func(f facts) bool
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{StatusInsufficientData, func(f facts) bool { return f.dataPoints < minDataPoints }},
	{StatusOnTrack, func(f facts) bool { return f.remaining <= 0 }},
	{StatusAtRisk, func(f facts) bool { return f.daily <= 0 }},
	{StatusBehind, func(f facts) bool {
		return f.estimate != nil && !f.endDate.IsZero() && f.estimate.After(f.endDate)
	}},
	{StatusAhead, func(f facts) bool {
		return !f.endDate.IsZero() && f.daily >= f.required*aheadMargin
	}},
	{StatusOnTrack, func(facts) bool { return true }},
}

// Engine computes forecasts. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	clock clock.Clock
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the time source.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// NewEngine creates an Engine reading the wall clock unless overridden.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = clock.OrReal(e.clock)
	return e
}

// Compute produces a forecast for in. It never fails; degenerate inputs
// map to fallback values.
func (e *Engine) Compute(in Input) Result {
	now := e.clock.Now()

	points := make([]velocity.Point, len(in.History))
	for i, s := range in.History {
		points[i] = velocity.Point{At: s.At, Value: s.Value}
	}
	v := velocity.Calculate(points)

	f := facts{
		now:        now,
		endDate:    in.EndDate,
		remaining:  in.Target - in.Progress,
		daily:      v.Daily,
		dataPoints: len(in.History),
	}

	daysRemaining := DaysRemaining(now, in.EndDate)
	if daysRemaining > 0 {
		f.required = f.remaining / float64(daysRemaining)
	}
	if f.daily > 0 && f.remaining > 0 {
		est := now.Add(time.Duration(math.Ceil(f.remaining/f.daily)) * day)
		f.estimate = &est
	}

	status := classify(f)

	return Result{
		CurrentProgress:         in.Progress,
		TargetValue:             in.Target,
		ProgressPercentage:      goal.Percentage(in.Progress, in.Target),
		DailyVelocity:           v.Daily,
		WeeklyVelocity:          v.Weekly,
		RequiredDailyVelocity:   f.required,
		EstimatedCompletionDate: f.estimate,
		DaysRemaining:           daysRemaining,
		ForecastStatus:          status,
		ConfidenceLevel:         ConfidenceFor(f.dataPoints),
		DataPointsCount:         f.dataPoints,
		Message:                 message(status, f, daysRemaining),
	}
}

func classify(f facts) Status {
	for _, r := range rules {
		if r.match(f) {
			return r.status
		}
	}
	return StatusOnTrack
}

// DaysRemaining is the whole number of days until end, rounded up. It is
// negative once end has passed and zero when end is unset.
func DaysRemaining(now, end time.Time) int {
	if end.IsZero() {
		return 0
	}
	return int(math.Ceil(float64(end.Sub(now)) / float64(day)))
}

func message(status Status, f facts, daysRemaining int) string {
	switch status {
	case StatusInsufficientData:
		return "Not enough data for accurate forecasting. Need at least 2 progress snapshots."
	case StatusAtRisk:
		return fmt.Sprintf("Goal is at risk. No recent progress detected. %d days remaining.", daysRemaining)
	case StatusBehind:
		overshoot := int(math.Ceil(float64(f.estimate.Sub(f.endDate)) / float64(day)))
		return fmt.Sprintf("Estimated completion: %s. May miss deadline by %d days.",
			f.estimate.Format("Jan 2, 2006"), overshoot)
	case StatusAhead:
		return "Great progress! On track to complete ahead of schedule."
	}
	return fmt.Sprintf("On track to complete on time. %d days remaining.", daysRemaining)
}
