package repository

import (
	"context"
	"errors"
	"fmt"

	"commerce-core/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

const cartLineColumns = `
	c.user_id, c.product_id, p.name, c.quantity, c.unit_price, c.created_at, c.updated_at
`

func scanCartLines(rows pgx.Rows) ([]model.CartLine, error) {
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", classifyError(err))
	}
	return lines, nil
}

// List returns the user's cart lines ordered by product ID.
func (r *cartRepository) List(ctx context.Context, userID string) ([]model.CartLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
	`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", classifyError(err))
	}
	return scanCartLines(rows)
}

// Quantity returns the current quantity of a line, or 0.
func (r *cartRepository) Quantity(ctx context.Context, userID, productID string) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx,
		`SELECT quantity FROM cart_lines WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cart quantity: %w", classifyError(err))
	}
	return qty, nil
}

// AddWithinLimit accumulates in a single statement. A concurrent add to the
// same line waits on the row and re-evaluates the limit against the
// committed quantity.
func (r *cartRepository) AddWithinLimit(ctx context.Context, userID, productID string, qty int, unitPrice int64, limit int) (int, bool, error) {
	query := `
		INSERT INTO cart_lines (user_id, product_id, quantity, unit_price)
		SELECT $1, $2, $3::int, $4::bigint
		WHERE $3::int <= $5::int
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity   = cart_lines.quantity + EXCLUDED.quantity,
		    unit_price = EXCLUDED.unit_price,
		    updated_at = NOW()
		WHERE cart_lines.quantity + EXCLUDED.quantity <= $5::int
		RETURNING quantity
	`

	var newQty int
	err := r.pool.QueryRow(ctx, query, userID, productID, qty, unitPrice, limit).Scan(&newQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		r.logger.Error().Err(err).
			Str("user_id", userID).
			Str("product_id", productID).
			Msg("failed to add to cart")
		return 0, false, fmt.Errorf("failed to add to cart: %w", classifyError(err))
	}

	return newQty, true, nil
}

// Set overwrites the line's quantity, creating it when absent.
func (r *cartRepository) Set(ctx context.Context, userID, productID string, qty int, unitPrice int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price, updated_at = NOW()
	`, userID, productID, qty, unitPrice)
	if err != nil {
		r.logger.Error().Err(err).
			Str("user_id", userID).
			Str("product_id", productID).
			Msg("failed to set cart quantity")
		return fmt.Errorf("failed to set cart quantity: %w", classifyError(err))
	}
	return nil
}

// Remove deletes a line and reports whether it existed.
func (r *cartRepository) Remove(ctx context.Context, userID, productID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove cart line: %w", classifyError(err))
	}
	return tag.RowsAffected() > 0, nil
}

// Clear deletes every line of the user.
func (r *cartRepository) Clear(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", classifyError(err))
	}
	return tag.RowsAffected(), nil
}

// LockLines locks the user's lines in product ID order.
func (r *cartRepository) LockLines(ctx context.Context, tx pgx.Tx, userID string) ([]model.CartLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+cartLineColumns+`
		FROM cart_lines c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
		FOR UPDATE OF c
	`, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to lock cart")
		return nil, fmt.Errorf("failed to lock cart: %w", classifyError(err))
	}
	return scanCartLines(rows)
}

// DeleteLines removes the given products from the cart inside tx.
func (r *cartRepository) DeleteLines(ctx context.Context, tx pgx.Tx, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1 AND product_id = ANY($2)`,
		userID, productIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart lines: %w", classifyError(err))
	}
	return nil
}
