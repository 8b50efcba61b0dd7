package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// ── Goal model ────────────────────────────────────────────────────

type goalModel struct {
	bun.BaseModel `bun:"table:goalpace_goals"`

	ID                   string     `bun:"id,pk"`
	Name                 string     `bun:"name,notnull"`
	OwnerType            string     `bun:"owner_type,notnull"`
	OwnerID              string     `bun:"owner_id,notnull"`
	Metric               string     `bun:"metric,notnull"`
	TargetValue          float64    `bun:"target_value,notnull"`
	Progress             float64    `bun:"progress,notnull"`
	ProgressPercentage   float64    `bun:"progress_percentage,notnull"`
	StartDate            *time.Time `bun:"start_date"`
	EndDate              *time.Time `bun:"end_date"`
	Status               string     `bun:"status,notnull"`
	AutoCalculated       bool       `bun:"auto_calculated,notnull"`
	LastCalculatedAt     *time.Time `bun:"last_calculated_at"`
	CalculationFailed    bool       `bun:"calculation_failed,notnull"`
	ManualOverrideReason string     `bun:"manual_override_reason,notnull"`
	CreatedAt            time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toGoalModel(g *goal.Goal) *goalModel {
	return &goalModel{
		ID:                   g.ID.String(),
		Name:                 g.Name,
		OwnerType:            string(g.OwnerType),
		OwnerID:              g.OwnerID,
		Metric:               string(g.Metric),
		TargetValue:          g.TargetValue,
		Progress:             g.Progress,
		ProgressPercentage:   g.ProgressPercentage,
		StartDate:            nullTime(g.StartDate),
		EndDate:              nullTime(g.EndDate),
		Status:               string(g.Status),
		AutoCalculated:       g.AutoCalculated,
		LastCalculatedAt:     g.LastCalculatedAt,
		CalculationFailed:    g.CalculationFailed,
		ManualOverrideReason: g.ManualOverrideReason,
		CreatedAt:            g.CreatedAt,
		UpdatedAt:            g.UpdatedAt,
	}
}

func fromGoalModel(m *goalModel) (*goal.Goal, error) {
	parsedID, err := id.ParseGoalID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("goalpace/bun: parse goal id %q: %w", m.ID, err)
	}
	return &goal.Goal{
		Entity: goalpace.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   parsedID,
		Name:                 m.Name,
		OwnerType:            goal.OwnerType(m.OwnerType),
		OwnerID:              m.OwnerID,
		Metric:               goal.MetricType(m.Metric),
		TargetValue:          m.TargetValue,
		Progress:             m.Progress,
		ProgressPercentage:   m.ProgressPercentage,
		StartDate:            fromNullTime(m.StartDate),
		EndDate:              fromNullTime(m.EndDate),
		Status:               goal.Status(m.Status),
		AutoCalculated:       m.AutoCalculated,
		LastCalculatedAt:     m.LastCalculatedAt,
		CalculationFailed:    m.CalculationFailed,
		ManualOverrideReason: m.ManualOverrideReason,
	}, nil
}

// ── Snapshot model ────────────────────────────────────────────────

type snapshotModel struct {
	bun.BaseModel `bun:"table:goalpace_snapshots"`

	ID                 string    `bun:"id,pk"`
	GoalID             string    `bun:"goal_id,notnull"`
	ProgressValue      float64   `bun:"progress_value,notnull"`
	TargetValue        float64   `bun:"target_value,notnull"`
	ProgressPercentage float64   `bun:"progress_percentage,notnull"`
	Source             string    `bun:"source,notnull"`
	SnapshotAt         time.Time `bun:"snapshot_at,notnull"`
	Notes              string    `bun:"notes,notnull"`
}

func toSnapshotModel(s *snapshot.Snapshot) *snapshotModel {
	return &snapshotModel{
		ID:                 s.ID.String(),
		GoalID:             s.GoalID.String(),
		ProgressValue:      s.ProgressValue,
		TargetValue:        s.TargetValue,
		ProgressPercentage: s.ProgressPercentage,
		Source:             string(s.Source),
		SnapshotAt:         s.Timestamp,
		Notes:              s.Notes,
	}
}

func fromSnapshotModel(m *snapshotModel) (*snapshot.Snapshot, error) {
	snapID, err := id.ParseSnapshotID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("goalpace/bun: parse snapshot id %q: %w", m.ID, err)
	}
	goalID, err := id.ParseGoalID(m.GoalID)
	if err != nil {
		return nil, fmt.Errorf("goalpace/bun: parse goal id %q: %w", m.GoalID, err)
	}
	return &snapshot.Snapshot{
		ID:                 snapID,
		GoalID:             goalID,
		ProgressValue:      m.ProgressValue,
		TargetValue:        m.TargetValue,
		ProgressPercentage: m.ProgressPercentage,
		Source:             snapshot.Source(m.Source),
		Timestamp:          m.SnapshotAt.UTC(),
		Notes:              m.Notes,
	}, nil
}

// ── Job lock model ────────────────────────────────────────────────

type jobLockModel struct {
	bun.BaseModel `bun:"table:goalpace_job_locks"`

	JobName    string     `bun:"job_name,pk"`
	LockedBy   *string    `bun:"locked_by"`
	LockedAt   *time.Time `bun:"locked_at"`
	ExpiresAt  *time.Time `bun:"expires_at"`
	LeaseToken *string    `bun:"lease_token"`
}

func fromJobLockModel(m *jobLockModel) *lock.JobLock {
	l := &lock.JobLock{
		JobName:   m.JobName,
		LockedAt:  m.LockedAt,
		ExpiresAt: m.ExpiresAt,
	}
	if m.LockedBy != nil {
		l.LockedBy = *m.LockedBy
	}
	if m.LeaseToken != nil {
		l.LeaseToken = *m.LeaseToken
	}
	return l
}
