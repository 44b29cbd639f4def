package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// withTxTimeout bounds a ledger transaction. A zero timeout keeps the
// caller's deadline.
func withTxTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// rollbackOnError rolls tx back when *errp is set. It is deferred right after
// BeginTx.
func rollbackOnError(ctx context.Context, tx pgx.Tx, errp *error, logger zerolog.Logger) {
	if *errp == nil {
		return
	}
	// The transaction context may already be past its deadline.
	if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		logger.Error().Err(rbErr).Msg("failed to rollback transaction")
	}
}
