//go:build integration

// Package dbtest starts a disposable Postgres for integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrJamesThe3rd/spendtrack/internal/database"
)

const image = "postgres:16-alpine"

// Open starts a container, applies every migration and returns a pool
// connected to it. The container is terminated when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		image,
		tcpostgres.WithDatabase("spendtrack"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(connStr))

	db, err := database.New(ctx, connStr, database.DefaultPool)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}
