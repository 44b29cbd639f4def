package repository

import (
	"context"
	"errors"
	"fmt"

	"commerce-core/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Postgres SQLSTATE codes the ledgers react to.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgLockNotAvailable     = "55P03"
	pgCheckViolation       = "23514"

	refundGuardConstraint = "refund_quantity_guard"
)

// beginTx starts a read-committed transaction. Row locks taken inside it
// carry the isolation the ledgers rely on.
func beginTx(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (pgx.Tx, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", classifyError(err))
	}
	return tx, nil
}

// classifyError turns driver failures that callers can act on into domain
// errors and returns anything else unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return model.ErrTransactionConflict.Wrap(err)
		case pgQueryCanceled, pgLockNotAvailable:
			return model.ErrTimeout.Wrap(err)
		case pgCheckViolation:
			if pgErr.ConstraintName == refundGuardConstraint {
				return model.ErrIntegrityViolation.Wrap(err)
			}
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return model.ErrTimeout.Wrap(err)
	}

	return err
}
