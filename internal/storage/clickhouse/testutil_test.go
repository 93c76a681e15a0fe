package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection
// with the snapshot schema applied.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	// Schema mirrors internal/storage/migrations/clickhouse/001_token_snapshots.sql.
	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS token_snapshots (
			address         String,
			chain           String,
			timestamp_ms    UInt64,
			price           Nullable(Float64),
			liquidity_usd   Nullable(Float64),
			volume_24h      Nullable(Float64),
			market_cap_usd  Nullable(Float64),
			holder_count    Nullable(Int64),
			mint_revoked    Nullable(UInt8),
			lp_locked       Nullable(UInt8),
			buy_tax         Nullable(Float64),
			sell_tax        Nullable(Float64),
			mention_count   Nullable(Int64),
			sentiment       Nullable(Float64),
			sources_ok      UInt32,
			data_sufficient UInt8
		)
		ENGINE = MergeTree()
		ORDER BY (address, timestamp_ms)
	`)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}
