// Package metric defines where auto-calculated goals get their progress.
package metric

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/goal"
)

// Source computes the current progress value of a goal.
type Source interface {
	Value(ctx context.Context, g *goal.Goal) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, g *goal.Goal) (float64, error)

// Value implements Source.
func (f SourceFunc) Value(ctx context.Context, g *goal.Goal) (float64, error) { return f(ctx, g) }

// Registry maps metric types to sources. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[goal.MetricType]Source
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[goal.MetricType]Source)}
}

// Register sets the source for a metric type, replacing any previous one.
func (r *Registry) Register(m goal.MetricType, s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[m] = s
}

// Lookup returns the source for m.
func (r *Registry) Lookup(m goal.MetricType) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[m]
	return s, ok
}

// Value resolves the goal's metric source and queries it. An unregistered
// metric type yields goalpace.ErrUnsupportedMetric.
func (r *Registry) Value(ctx context.Context, g *goal.Goal) (float64, error) {
	s, ok := r.Lookup(g.Metric)
	if !ok {
		return 0, fmt.Errorf("%w: %q", goalpace.ErrUnsupportedMetric, g.Metric)
	}
	return s.Value(ctx, g)
}
