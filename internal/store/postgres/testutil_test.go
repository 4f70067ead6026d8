//go:build integration

package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/emperorhan/terra-sync/internal/store/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func migrationsDir() string {
	_, currentFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(currentFile), "migrations")
}

// setupTestContainer starts PostgreSQL via testcontainers-go, runs all
// migrations, and returns a connected *postgres.DB.
func setupTestContainer(t *testing.T) *postgres.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test_terra"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return openAndMigrate(t, connStr)
}

func openAndMigrate(t *testing.T, url string) *postgres.DB {
	t.Helper()

	db, err := postgres.New(postgres.Config{
		URL:                url,
		MaxOpenConns:       5,
		MaxIdleConns:       2,
		ConnMaxLifetime:    time.Minute,
		StatementTimeoutMS: 10000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), migrationsDir()))
	return db
}

// testDB prefers TEST_DB_URL and falls back to an ephemeral container.
// Every call starts from empty tables.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()

	var db *postgres.DB
	if url := os.Getenv("TEST_DB_URL"); url != "" {
		db = openAndMigrate(t, url)
	} else {
		db = setupTestContainer(t)
	}

	_, err := db.ExecContext(context.Background(), `TRUNCATE terras, pending_txs`)
	require.NoError(t, err)
	return db
}
