package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/goalpace/lock"
	"github.com/xraph/goalpace/metric"
	"github.com/xraph/goalpace/metric/crmsql"
	"github.com/xraph/goalpace/store"
	bunstore "github.com/xraph/goalpace/store/bun"
	"github.com/xraph/goalpace/store/memory"
	mongostore "github.com/xraph/goalpace/store/mongo"
	natsstore "github.com/xraph/goalpace/store/nats"
	pgstore "github.com/xraph/goalpace/store/postgres"
	redisstore "github.com/xraph/goalpace/store/redis"
)

// closers collects shutdown funcs and runs them in reverse order.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openStore connects the configured goal/snapshot backend and, when one is
// configured, the separate lock backend. The postgres pool is returned so
// metric sources can share it.
func openStore(ctx context.Context, s settings, logger *slog.Logger, c *closers) (store.Store, *pgxpool.Pool, error) {
	base, err := openBase(ctx, s, logger, c)
	if err != nil {
		return nil, nil, err
	}
	c.add(base.Close)

	var pool *pgxpool.Pool
	if pg, ok := base.(*pgstore.Store); ok {
		pool = pg.Pool()
	}

	if s.LocksDriver == "" {
		return base, pool, nil
	}
	locks, err := openLocks(ctx, s, logger, c)
	if err != nil {
		return nil, nil, err
	}
	return store.WithLocks(base, locks), pool, nil
}

func openBase(ctx context.Context, s settings, logger *slog.Logger, c *closers) (store.Store, error) {
	switch s.StoreDriver {
	case "memory":
		return memory.New(), nil

	case "postgres":
		return pgstore.New(ctx, s.StoreDSN, pgstore.WithLogger(logger))

	case "bun":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(s.StoreDSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		c.add(db.Close)
		return bunstore.New(db, bunstore.WithLogger(logger)), nil

	case "mongo":
		client, err := mongod.Connect(options.Client().ApplyURI(s.StoreDSN))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.add(func() error { return client.Disconnect(context.Background()) })
		return mongostore.New(client.Database(s.StoreDatabase), mongostore.WithLogger(logger)), nil

	case "redis":
		client, err := newRedisClient(s.StoreDSN)
		if err != nil {
			return nil, err
		}
		c.add(client.Close)
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", s.StoreDriver)
}

func openLocks(ctx context.Context, s settings, logger *slog.Logger, c *closers) (lock.Store, error) {
	switch s.LocksDriver {
	case "nats":
		nc, err := natsgo.Connect(s.LocksURL, natsgo.Name("goalpaced"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		c.add(func() error { nc.Close(); return nil })
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		return natsstore.Open(ctx, js, s.LocksBucket, natsstore.WithLogger(logger))

	case "redis":
		client, err := newRedisClient(s.LocksURL)
		if err != nil {
			return nil, err
		}
		c.add(client.Close)
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown locks driver %q", s.LocksDriver)
}

func newRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// openMetrics builds the metric source registry. CRM tables are read from
// crm.dsn, or from the postgres store's own pool when no dsn is given.
func openMetrics(ctx context.Context, s settings, storePool *pgxpool.Pool, logger *slog.Logger, c *closers) (*metric.Registry, error) {
	if s.CRMDSN != "" {
		pool, err := pgxpool.New(ctx, s.CRMDSN)
		if err != nil {
			return nil, fmt.Errorf("connect crm database: %w", err)
		}
		c.add(func() error { pool.Close(); return nil })
		return crmsql.NewRegistry(pool), nil
	}
	if storePool != nil {
		return crmsql.NewRegistry(storePool), nil
	}

	logger.Warn("no crm database configured, auto-calculated goals will fail to recalculate",
		slog.String("store", s.StoreDriver),
	)
	return metric.NewRegistry(), nil
}
