package goal

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/id"
)

// OwnerType identifies who a goal belongs to.
type OwnerType string

const (
	OwnerIndividual   OwnerType = "individual"
	OwnerTeam         OwnerType = "team"
	OwnerOrganization OwnerType = "organization"
)

// MetricType selects the metric a goal measures.
type MetricType string

const (
	MetricRevenue    MetricType = "revenue"
	MetricDeals      MetricType = "deals"
	MetricActivities MetricType = "activities"
	MetricTasks      MetricType = "tasks"
)

// Status is the lifecycle state of a goal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Goal is a tracked business target with a deadline.
type Goal struct {
	goalpace.Entity

	ID                 id.GoalID  `json:"id"`
	Name               string     `json:"name"`
	OwnerType          OwnerType  `json:"owner_type"`
	OwnerID            string     `json:"owner_id"`
	Metric             MetricType `json:"metric"`
	TargetValue        float64    `json:"target_value"`
	Progress           float64    `json:"progress"`
	ProgressPercentage float64    `json:"progress_percentage"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	Status             Status     `json:"status"`
	AutoCalculated     bool       `json:"auto_calculated"`
	LastCalculatedAt   *time.Time `json:"last_calculated_at,omitempty"`
	CalculationFailed  bool       `json:"calculation_failed"`

	// ManualOverrideReason is the justification recorded by the last manual
	// adjustment. A successful recalculation clears it.
	ManualOverrideReason string `json:"manual_override_reason,omitempty"`
}

// SetProgress updates the progress value and keeps ProgressPercentage in
// sync with it.
func (g *Goal) SetProgress(progress float64) {
	g.Progress = progress
	g.ProgressPercentage = Percentage(progress, g.TargetValue)
}

// Percentage returns progress/target as a percentage clamped to [0, 100].
// A non-positive target yields 0.
func Percentage(progress, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := progress / target * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// IsAutoTracked reports whether the schedulers should process the goal.
func (g *Goal) IsAutoTracked() bool {
	return g.Status == StatusActive && g.AutoCalculated
}

// MinJustificationLength is the shortest accepted manual-adjustment reason.
const MinJustificationLength = 10

// ValidateManualAdjustment checks a manual progress override against the
// goal's target.
func ValidateManualAdjustment(progress, target float64, justification string) error {
	switch {
	case progress < 0:
		return fmt.Errorf("%w: progress must not be negative", goalpace.ErrInvalidAdjustment)
	case target > 0 && progress > target:
		return fmt.Errorf("%w: progress %.2f exceeds target %.2f", goalpace.ErrInvalidAdjustment, progress, target)
	case len(strings.TrimSpace(justification)) < MinJustificationLength:
		return fmt.Errorf("%w: justification must be at least %d characters", goalpace.ErrInvalidAdjustment, MinJustificationLength)
	}
	return nil
}
