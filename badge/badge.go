// Package badge classifies a goal into the status badge shown next to it.
package badge

import (
	"time"

	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/forecast"
	"github.com/xraph/goalpace/goal"
)

// DefaultStaleAfter is how long a goal may go uncalculated before it needs
// attention.
const DefaultStaleAfter = 14 * 24 * time.Hour

// Status is a badge classification.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusOverdue        Status = "overdue"
	StatusAlmostThere    Status = "almost-there"
	StatusAtRisk         Status = "at-risk"
	StatusNeedsAttention Status = "needs-attention"
	StatusOnTrack        Status = "on-track"
)

// Badge is the UI-facing classification of a goal.
type Badge struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

var badges = map[Status]Badge{
	StatusCompleted:      {StatusCompleted, "Completed", "success"},
	StatusOverdue:        {StatusOverdue, "Overdue", "error"},
	StatusAlmostThere:    {StatusAlmostThere, "Almost There", "info"},
	StatusAtRisk:         {StatusAtRisk, "At Risk", "warning"},
	StatusNeedsAttention: {StatusNeedsAttention, "Needs Attention", "warning"},
	StatusOnTrack:        {StatusOnTrack, "On Track", "success"},
}

// For returns the badge for a status.
func For(s Status) Badge { return badges[s] }

// Input is the subset of goal fields the classifier reads.
type Input struct {
	ProgressPercentage float64
	StartDate          time.Time
	EndDate            time.Time
	LastCalculatedAt   *time.Time
}

// InputFor extracts classifier input from a goal.
func InputFor(g *goal.Goal) Input {
	return Input{
		ProgressPercentage: g.ProgressPercentage,
		StartDate:          g.StartDate,
		EndDate:            g.EndDate,
		LastCalculatedAt:   g.LastCalculatedAt,
	}
}

type facts struct {
	pct           float64
	overdue       bool
	daysRemaining int
	elapsed       float64
	stale         bool
}

type rule struct {
	status Status
	match  func(f facts) bool
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{StatusCompleted, func(f facts) bool { return f.pct >= 100 }},
	{StatusOverdue, func(f facts) bool { return f.overdue }},
	{StatusAlmostThere, func(f facts) bool {
		return f.pct >= 90 && f.daysRemaining > 0 && f.daysRemaining <= 7
	}},
	{StatusAtRisk, func(f facts) bool {
		return (f.elapsed >= 50 && f.pct < 50) || (f.pct < 50 && 100-f.elapsed < 50)
	}},
	{StatusNeedsAttention, func(f facts) bool { return f.stale }},
	{StatusOnTrack, func(facts) bool { return true }},
}

// Classifier assigns badges. It is safe for concurrent use.
type Classifier struct {
	clock      clock.Clock
	staleAfter time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(cl *Classifier) { cl.clock = c }
}

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) Option {
	return func(cl *Classifier) { cl.staleAfter = d }
}

// NewClassifier creates a Classifier.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{staleAfter: DefaultStaleAfter}
	for _, opt := range opts {
		opt(c)
	}
	c.clock = clock.OrReal(c.clock)
	return c
}

// Classify returns the badge for in.
func (c *Classifier) Classify(in Input) Badge {
	now := c.clock.Now()
	f := facts{
		pct:           in.ProgressPercentage,
		overdue:       !in.EndDate.IsZero() && now.After(in.EndDate) && in.ProgressPercentage < 100,
		daysRemaining: forecast.DaysRemaining(now, in.EndDate),
		elapsed:       ElapsedPercentage(now, in.StartDate, in.EndDate),
		stale:         in.LastCalculatedAt == nil || now.Sub(*in.LastCalculatedAt) >= c.staleAfter,
	}
	for _, r := range rules {
		if r.match(f) {
			return For(r.status)
		}
	}
	return For(StatusOnTrack)
}

// ElapsedPercentage is the share of [start, end] that has passed at now,
// clamped to [0, 100]. It is 0 when either bound is unset.
func ElapsedPercentage(now, start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	switch {
	case now.Before(start):
		return 0
	case !now.Before(end):
		return 100
	}
	return float64(now.Sub(start)) / float64(end.Sub(start)) * 100
}
