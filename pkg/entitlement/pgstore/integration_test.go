//go:build integration

package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/pgstore"
	"github.com/dmitrymomot/quotakit/pkg/entitlement/storetest"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/pg"
)

func TestStore_Postgres(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("quotakit_test"),
		postgres.WithUsername("quotakit"),
		postgres.WithPassword("quotakit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	testcontainers.CleanupContainer(t, ctr)

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: connStr,
		MaxOpenConns:     10,
		RetryAttempts:    3,
		RetryInterval:    time.Second,
		MigrationsTable:  "quotakit_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, logger.Discard()))

	storetest.Run(t, func(t *testing.T) entitlement.Store {
		_, err := pool.Exec(ctx, "TRUNCATE entitlements CASCADE")
		require.NoError(t, err)
		return pgstore.New(pool)
	})
}
