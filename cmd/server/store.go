package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/firestorestore"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/mongostore"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/pgstore"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/redisstore"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
	"github.com/dmitrymomot/quotakit/pkg/mongo"
	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/redis"
)

type ledgerStore interface {
	entitlement.Store
	entitlement.Lister
}

// backend is the opened entitlement store plus what the server needs to
// probe and close it.
type backend struct {
	store  ledgerStore
	redis  *goredis.Client
	redisC redis.Config
	checks []httpserver.Check
	closer func(context.Context) error
}

func openBackend(ctx context.Context, d *deps) (*backend, error) {
	b := &backend{closer: func(context.Context) error { return nil }}

	switch d.cfg.StoreDriver {
	case driverMemory:
		b.store = entitlement.NewMemoryStore()

	case driverRedis:
		if err := config.Load(&b.redisC); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, b.redisC)
		if err != nil {
			return nil, err
		}
		b.redis = client
		b.store = redisstore.New(client,
			redisstore.WithKeyPrefix(b.redisC.KeyPrefix),
			redisstore.WithScanBatch(b.redisC.ScanBatchSize),
		)
		b.checks = append(b.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client, b.redisC.KeyPrefix)})
		b.closer = func(context.Context) error { return client.Close() }

	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, d.log); err != nil {
			pool.Close()
			return nil, err
		}
		b.store = pgstore.New(pool)
		b.checks = append(b.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool, "entitlements", "entitlement_usage")})
		b.closer = func(context.Context) error { pool.Close(); return nil }

	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.store = mongostore.New(db)
		b.checks = append(b.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})
		b.closer = db.Client().Disconnect

	case driverFirestore:
		if d.firebase == nil {
			return nil, fmt.Errorf("STORE_DRIVER=firestore needs FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS")
		}
		fs, err := d.firestoreClient(ctx)
		if err != nil {
			return nil, err
		}
		b.store = firestorestore.New(fs)
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "entitlement store ready", slog.String("driver", d.cfg.StoreDriver))
	return b, nil
}
