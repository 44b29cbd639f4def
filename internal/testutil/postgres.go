// Package testutil starts disposable Postgres instances for repository and
// end-to-end tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"commerce-core/internal/config"
	"commerce-core/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, applies the schema and
// registers cleanup with t.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := database.NewPoolFromURL(ctx, connStr, config.DatabaseConfig{
		MaxConnections: 60,
		MinConnections: 2,
	}, zerolog.Nop())
	require.NoError(t, err, "failed to create connection pool")

	require.NoError(t, database.Migrate(ctx, pool, zerolog.Nop()), "failed to migrate schema")

	t.Cleanup(func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedProduct inserts a product with its stock record.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id, name string, unitPrice int64, stock int) {
	t.Helper()

	ctx := context.Background()

	_, err := pool.Exec(ctx,
		"INSERT INTO products (id, name, category, unit_price) VALUES ($1, $2, $3, $4)",
		id, name, "test", unitPrice,
	)
	require.NoError(t, err, "failed to seed product %s", id)

	_, err = pool.Exec(ctx,
		"INSERT INTO stock_records (product_id, available_quantity) VALUES ($1, $2)",
		id, stock,
	)
	require.NoError(t, err, "failed to seed stock for %s", id)
}

// SetMembership assigns a tier to a user.
func SetMembership(t *testing.T, pool *pgxpool.Pool, userID, tier string) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO memberships (user_id, tier) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()
	`, userID, tier)
	require.NoError(t, err, "failed to set membership for %s", userID)
}

// StockOf reads the available quantity of a product.
func StockOf(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()

	var qty int
	err := pool.QueryRow(context.Background(),
		"SELECT available_quantity FROM stock_records WHERE product_id = $1", productID,
	).Scan(&qty)
	require.NoError(t, err)
	return qty
}

// CleanupDB deletes all rows, children first.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	tables := []string{
		"checkout_requests",
		"refund_requests",
		"order_lines",
		"orders",
		"cart_lines",
		"memberships",
		"stock_records",
		"products",
	}
	for _, table := range tables {
		if _, err := pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
