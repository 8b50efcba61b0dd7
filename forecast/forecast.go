// Package forecast projects when a goal will reach its target and whether
// it will do so before its deadline.
//
// The Engine is a pure function of its inputs and the injected clock. The
// Service loads a goal and its snapshot history from the stores and hands
// them to the Engine.
package forecast

import (
	"time"
)

// Status is the forecast health classification.
type Status string

const (
	StatusAhead            Status = "ahead"
	StatusOnTrack          Status = "on-track"
	StatusBehind           Status = "behind"
	StatusAtRisk           Status = "at-risk"
	StatusInsufficientData Status = "insufficient-data"
)

// Label returns the human-readable name of the status.
func (s Status) Label() string {
	switch s {
	case StatusAhead:
		return "Ahead of Schedule"
	case StatusOnTrack:
		return "On Track"
	case StatusBehind:
		return "Behind Schedule"
	case StatusAtRisk:
		return "At Risk"
	case StatusInsufficientData:
		return "Insufficient Data"
	}
	return "Unknown"
}

// Color returns the UI color token for the status.
func (s Status) Color() string {
	switch s {
	case StatusAhead, StatusOnTrack:
		return "success"
	case StatusBehind:
		return "warning"
	case StatusAtRisk:
		return "error"
	}
	return "default"
}

// Confidence rates how much history backs a forecast.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor maps a snapshot count to a confidence level.
func ConfidenceFor(dataPoints int) Confidence {
	switch {
	case dataPoints >= 10:
		return ConfidenceHigh
	case dataPoints >= 5:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Input is everything the Engine needs about one goal.
type Input struct {
	Progress float64
	Target   float64
	// EndDate is the goal deadline. The zero value means no deadline.
	EndDate time.Time
	History []Sample
}

// Sample is one historical progress observation.
type Sample struct {
	At    time.Time
	Value float64
}

// Result is the computed forecast for one goal.
type Result struct {
	CurrentProgress         float64    `json:"currentProgress"`
	TargetValue             float64    `json:"targetValue"`
	ProgressPercentage      float64    `json:"progressPercentage"`
	DailyVelocity           float64    `json:"dailyVelocity"`
	WeeklyVelocity          float64    `json:"weeklyVelocity"`
	RequiredDailyVelocity   float64    `json:"requiredDailyVelocity"`
	EstimatedCompletionDate *time.Time `json:"estimatedCompletionDate"`
	DaysRemaining           int        `json:"daysRemaining"`
	ForecastStatus          Status     `json:"forecastStatus"`
	ConfidenceLevel         Confidence `json:"confidenceLevel"`
	DataPointsCount         int        `json:"dataPointsCount"`
	Message                 string     `json:"message"`
}
