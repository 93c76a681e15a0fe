package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container and applies the schema.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	// Schema mirrors internal/storage/migrations/postgres/001_token_scores.sql.
	// Applied inline to avoid importing the migrations package from here.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS token_scores (
			id              BIGSERIAL PRIMARY KEY,
			address         TEXT             NOT NULL,
			chain           TEXT             NOT NULL,
			timestamp_ms    BIGINT           NOT NULL,
			safety_score    DOUBLE PRECISION NOT NULL,
			hype_score      DOUBLE PRECISION NOT NULL,
			verdict         TEXT             NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			data_sufficient BOOLEAN          NOT NULL,
			created_at      BIGINT           NOT NULL,
			CONSTRAINT token_scores_address_ts_key UNIQUE (address, timestamp_ms)
		)
	`)
	require.NoError(t, err, "failed to apply schema")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}
