// Package crmsql provides metric sources that read CRM deal and activity
// tables over pgx.
package crmsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/metric"
)

// Querier is the subset of *pgxpool.Pool the sources use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Each query takes ($1 start, $2 end, $3 owner type, $4 owner id). Only
// individual goals filter by owner.
const (
	revenueQuery = `
		SELECT COALESCE(SUM(amount), 0)::float8
		FROM crm_deal
		WHERE stage = 'Closed Won'
		  AND close_date >= $1
		  AND close_date <= $2
		  AND ($3 <> 'individual' OR owner_id = $4)`

	dealsQuery = `
		SELECT COUNT(1)::float8
		FROM crm_deal
		WHERE stage = 'Closed Won'
		  AND close_date >= $1
		  AND close_date <= $2
		  AND ($3 <> 'individual' OR owner_id = $4)`

	activitiesQuery = `
		SELECT COUNT(1)::float8
		FROM crm_activity
		WHERE status = 'Completed'
		  AND due_date >= $1
		  AND due_date <= $2
		  AND ($3 <> 'individual' OR owner_id = $4)`

	tasksQuery = `
		SELECT COUNT(1)::float8
		FROM crm_activity
		WHERE type = 'Task'
		  AND status = 'Completed'
		  AND due_date >= $1
		  AND due_date <= $2
		  AND ($3 <> 'individual' OR owner_id = $4)`
)

// Queries maps each metric type to its SQL.
var Queries = map[goal.MetricType]string{
	goal.MetricRevenue:    revenueQuery,
	goal.MetricDeals:      dealsQuery,
	goal.MetricActivities: activitiesQuery,
	goal.MetricTasks:      tasksQuery,
}

type source struct {
	db     Querier
	metric goal.MetricType
	query  string
}

func (s source) Value(ctx context.Context, g *goal.Goal) (float64, error) {
	var v float64
	err := s.db.QueryRow(ctx, s.query, g.StartDate, g.EndDate, string(g.OwnerType), g.OwnerID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("goalpace/crmsql: %s: %w", s.metric, err)
	}
	return v, nil
}

// NewSource returns the source for one metric type, or false when there is
// no query for it.
func NewSource(db Querier, m goal.MetricType) (metric.Source, bool) {
	q, ok := Queries[m]
	if !ok {
		return nil, false
	}
	return source{db: db, metric: m, query: q}, true
}

// Register adds every CRM source to r.
func Register(r *metric.Registry, db Querier) {
	for m := range Queries {
		s, _ := NewSource(db, m)
		r.Register(m, s)
	}
}

// NewRegistry returns a Registry populated with every CRM source.
func NewRegistry(db Querier) *metric.Registry {
	r := metric.NewRegistry()
	Register(r, db)
	return r
}
