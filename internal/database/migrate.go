package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

// migrationLockID keys the advisory lock that keeps concurrent instances from
// applying the schema at the same time.
const migrationLockID int64 = 0x636f6d6d65726365

// Schema returns the embedded DDL.
func Schema() string {
	return schemaSQL
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "migrate").Logger()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			logger.Warn().Err(err).Msg("failed to release migration lock")
		}
	}()

	// Without arguments pgx uses the simple protocol, which accepts the whole
	// multi-statement script in one round trip.
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		logger.Error().Err(err).Msg("schema migration failed")
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info().Msg("schema migration applied")
	return nil
}
