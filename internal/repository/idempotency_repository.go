package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type idempotencyRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewIdempotencyRepository creates a PostgreSQL-backed checkout claim store.
func NewIdempotencyRepository(pool *pgxpool.Pool, logger zerolog.Logger) IdempotencyRepository {
	return &idempotencyRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "idempotency").Logger(),
	}
}

// Claim inserts the claim, or takes over an expired one. A concurrent claim
// for the same key blocks on the primary key until the first transaction
// finishes, then sees its committed row.
func (r *idempotencyRepository) Claim(ctx context.Context, tx pgx.Tx, claim model.CheckoutClaim) (*model.CheckoutClaim, bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO checkout_requests (user_id, idempotency_key, fingerprint, order_id, expires_at)
		VALUES ($1, $2, $3, NULL, $4)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    order_id    = NULL,
		    expires_at  = EXCLUDED.expires_at,
		    created_at  = NOW()
		WHERE checkout_requests.expires_at <= NOW()
	`, claim.UserID, claim.IdempotencyKey, claim.Fingerprint, claim.ExpiresAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", claim.UserID).Msg("failed to claim idempotency key")
		return nil, false, fmt.Errorf("failed to claim idempotency key: %w", classifyError(err))
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	var existing model.CheckoutClaim
	err = tx.QueryRow(ctx, `
		SELECT user_id, idempotency_key, fingerprint, order_id, expires_at
		FROM checkout_requests
		WHERE user_id = $1 AND idempotency_key = $2
	`, claim.UserID, claim.IdempotencyKey).Scan(
		&existing.UserID,
		&existing.IdempotencyKey,
		&existing.Fingerprint,
		&existing.OrderID,
		&existing.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Purged between the insert and the read.
			return nil, false, model.ErrTransactionConflict.WithMessage("idempotency claim disappeared, please retry")
		}
		return nil, false, fmt.Errorf("failed to read idempotency claim: %w", classifyError(err))
	}

	return &existing, false, nil
}

// AttachOrder records the order created for a claim inside tx.
func (r *idempotencyRepository) AttachOrder(ctx context.Context, tx pgx.Tx, userID, key string, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_requests SET order_id = $3
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, orderID)
	if err != nil {
		return fmt.Errorf("failed to attach order to idempotency claim: %w", classifyError(err))
	}
	return nil
}

// PurgeExpired deletes claims that expired before now.
func (r *idempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM checkout_requests WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency claims: %w", classifyError(err))
	}
	if n := tag.RowsAffected(); n > 0 {
		r.logger.Info().Int64("purged", n).Msg("expired idempotency claims purged")
	}
	return tag.RowsAffected(), nil
}
