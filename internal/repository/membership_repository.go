package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type membershipRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewMembershipRepository creates a new PostgreSQL-backed membership repository.
func NewMembershipRepository(pool *pgxpool.Pool, logger zerolog.Logger) MembershipRepository {
	return &membershipRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "membership").Logger(),
	}
}

func (r *membershipRepository) TierOf(ctx context.Context, userID string) (string, error) {
	var tier string
	err := r.pool.QueryRow(ctx, `SELECT tier FROM memberships WHERE user_id = $1`, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read membership")
		return "", fmt.Errorf("failed to read membership: %w", classifyError(err))
	}
	return tier, nil
}
