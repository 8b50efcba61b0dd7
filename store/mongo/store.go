package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/goalpace"
	"github.com/xraph/goalpace/clock"
	"github.com/xraph/goalpace/goal"
	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/snapshot"
)

// Collection name constants.
const (
	colGoals     = "goalpace_goals"
	colSnapshots = "goalpace_snapshots"
	colLocks     = "goalpace_job_locks"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ goal.Store     = (*Store)(nil)
	_ snapshot.Store = (*Store)(nil)
	_ lock.Store     = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store.
// The caller owns the *mongo.Database lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the time source used for lease expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates a new MongoDB store. The caller owns the db lifecycle -- the
// Store will not close it on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.OrReal(s.clock)
	return s
}

// DB returns the underlying *mongo.Database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all goalpace collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: goalpace/mongo: migrate %s indexes: %v", goalpace.ErrMigrationFailed, col, err)
		}
		s.logger.Debug("ensured indexes", slog.String("collection", col))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	return mongod.IsDuplicateKeyError(err)
}

// migrationIndexes returns the index definitions for all goalpace collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colGoals: {
			// Scheduler scan: active auto-calculated goals by creation.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "auto_calculated", Value: 1},
				{Key: "created_at", Value: 1},
			}},
		},
		colSnapshots: {
			// History and latest lookup per goal.
			{Keys: bson.D{
				{Key: "goal_id", Value: 1},
				{Key: "snapshot_at", Value: -1},
			}},
		},
	}
}
