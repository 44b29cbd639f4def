package repository

import (
	"context"
	"testing"
	"time"

	"commerce-core/internal/model"
	"commerce-core/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepository_Claim(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	testutil.SeedProduct(t, pool, "P001", "Apple", 1000, 5)

	repo := NewIdempotencyRepository(pool, zerolog.Nop())
	orders := NewOrderRepository(pool, zerolog.Nop())
	orderID := seedOrder(t, pool, "u1", map[string]int{"P001": 1})

	claim := model.CheckoutClaim{
		UserID:         "u1",
		IdempotencyKey: "key-1",
		Fingerprint:    "fp-a",
		ExpiresAt:      time.Now().Add(time.Hour),
	}

	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)
	existing, claimed, err := repo.Claim(ctx, tx, claim)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)
	require.NoError(t, repo.AttachOrder(ctx, tx, "u1", "key-1", orderID))
	require.NoError(t, tx.Commit(ctx))

	t.Run("Second claim returns the stored one", func(t *testing.T) {
		tx, err := orders.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		again := claim
		again.Fingerprint = "fp-b"
		existing, claimed, err := repo.Claim(ctx, tx, again)
		require.NoError(t, err)
		assert.False(t, claimed)
		require.NotNil(t, existing)
		assert.Equal(t, "fp-a", existing.Fingerprint)
		require.NotNil(t, existing.OrderID)
		assert.Equal(t, orderID, *existing.OrderID)
	})

	t.Run("Same key for another user is independent", func(t *testing.T) {
		tx, err := orders.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		other := claim
		other.UserID = "u2"
		_, claimed, err := repo.Claim(ctx, tx, other)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("Expired claim is taken over", func(t *testing.T) {
		_, err := pool.Exec(ctx,
			`UPDATE checkout_requests SET expires_at = NOW() - INTERVAL '1 minute' WHERE user_id = 'u1'`)
		require.NoError(t, err)

		tx, err := orders.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		existing, claimed, err := repo.Claim(ctx, tx, claim)
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.Nil(t, existing)
	})

	t.Run("Purge removes expired claims", func(t *testing.T) {
		n, err := repo.PurgeExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
