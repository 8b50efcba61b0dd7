package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// ── Goal model ────────────────────────────────────────────────────

type goalModel struct {
	ID                   string     `bson:"_id"`
	Name                 string     `bson:"name"`
	OwnerType            string     `bson:"owner_type"`
	OwnerID              string     `bson:"owner_id"`
	Metric               string     `bson:"metric"`
	TargetValue          float64    `bson:"target_value"`
	Progress             float64    `bson:"progress"`
	ProgressPercentage   float64    `bson:"progress_percentage"`
	StartDate            *time.Time `bson:"start_date,omitempty"`
	EndDate              *time.Time `bson:"end_date,omitempty"`
	Status               string     `bson:"status"`
	AutoCalculated       bool       `bson:"auto_calculated"`
	LastCalculatedAt     *time.Time `bson:"last_calculated_at,omitempty"`
	CalculationFailed    bool       `bson:"calculation_failed"`
	ManualOverrideReason string     `bson:"manual_override_reason"`
	CreatedAt            time.Time  `bson:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at"`
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
		StartDate:            optionalTime(g.StartDate),
		EndDate:              optionalTime(g.EndDate),
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
		return nil, fmt.Errorf("goalpace/mongo: parse goal id %q: %w", m.ID, err)
	}
	g := &goal.Goal{
		Entity: goalpace.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:                   parsedID,
		Name:                 m.Name,
		OwnerType:            goal.OwnerType(m.OwnerType),
		OwnerID:              m.OwnerID,
		Metric:               goal.MetricType(m.Metric),
		TargetValue:          m.TargetValue,
		Progress:             m.Progress,
		ProgressPercentage:   m.ProgressPercentage,
		Status:               goal.Status(m.Status),
		AutoCalculated:       m.AutoCalculated,
		CalculationFailed:    m.CalculationFailed,
		ManualOverrideReason: m.ManualOverrideReason,
	}
	if m.StartDate != nil {
		g.StartDate = m.StartDate.UTC()
	}
	if m.EndDate != nil {
		g.EndDate = m.EndDate.UTC()
	}
	if m.LastCalculatedAt != nil {
		t := m.LastCalculatedAt.UTC()
		g.LastCalculatedAt = &t
	}
	return g, nil
}

// ── Snapshot model ────────────────────────────────────────────────

type snapshotModel struct {
	ID                 string    `bson:"_id"`
	GoalID             string    `bson:"goal_id"`
	ProgressValue      float64   `bson:"progress_value"`
	TargetValue        float64   `bson:"target_value"`
	ProgressPercentage float64   `bson:"progress_percentage"`
	Source             string    `bson:"source"`
	SnapshotAt         time.Time `bson:"snapshot_at"`
	Notes              string    `bson:"notes"`
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
		return nil, fmt.Errorf("goalpace/mongo: parse snapshot id %q: %w", m.ID, err)
	}
	goalID, err := id.ParseGoalID(m.GoalID)
	if err != nil {
		return nil, fmt.Errorf("goalpace/mongo: parse goal id %q: %w", m.GoalID, err)
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
	JobName    string     `bson:"_id"`
	LockedBy   *string    `bson:"locked_by"`
	LockedAt   *time.Time `bson:"locked_at"`
	ExpiresAt  *time.Time `bson:"expires_at"`
	LeaseToken *string    `bson:"lease_token"`
}

func fromJobLockModel(m *jobLockModel) *lock.JobLock {
	l := &lock.JobLock{JobName: m.JobName}
	if m.LockedBy != nil {
		l.LockedBy = *m.LockedBy
	}
	if m.LeaseToken != nil {
		l.LeaseToken = *m.LeaseToken
	}
	if m.LockedAt != nil {
		t := m.LockedAt.UTC()
		l.LockedAt = &t
	}
	if m.ExpiresAt != nil {
		t := m.ExpiresAt.UTC()
		l.ExpiresAt = &t
	}
	return l
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
