package database_test

import (
	"context"
	"testing"

	"commerce-core/internal/database"
	"commerce-core/internal/testutil"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// SetupTestDB already migrated once.
	require.NoError(t, database.Migrate(ctx, db.Pool, zerolog.Nop()))

	var triggers int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM pg_trigger WHERE tgname = 'refund_quantity_guard'",
	).Scan(&triggers)
	require.NoError(t, err)
	assert.Equal(t, 1, triggers)
}

func TestSchema_StockCannotGoNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	testutil.SeedProduct(t, db.Pool, "P001", "Apple", 1000, 1)

	_, err := db.Pool.Exec(ctx,
		"UPDATE stock_records SET available_quantity = available_quantity - 2 WHERE product_id = 'P001'")
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23514", pgErr.Code)
	assert.Equal(t, 1, testutil.StockOf(t, db.Pool, "P001"))
}
