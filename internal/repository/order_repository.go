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

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `
	id, user_id, status, subtotal, discount_amount, shipping_fee,
	total_price, membership_tier, created_at, updated_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.ShippingFee,
		&o.TotalPrice,
		&o.MembershipTier,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, status, subtotal, discount_amount, shipping_fee,
			total_price, membership_tier, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		order.ID,
		order.UserID,
		order.Status,
		order.Subtotal,
		order.DiscountAmount,
		order.ShippingFee,
		order.TotalPrice,
		order.MembershipTier,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", classifyError(err))
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Msg("order created successfully")

	return nil
}

// CreateOrderLines inserts the order's lines within the provided transaction.
func (r *orderRepository) CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price, line_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(query, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, l.LinePrice)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range lines {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", lines[i].OrderID.String()).
				Str("product_id", lines[i].ProductID).
				Msg("failed to create order line")
			return fmt.Errorf("failed to create order line: %w", classifyError(err))
		}
	}

	r.logger.Debug().
		Int("count", len(lines)).
		Msg("order lines created successfully")

	return nil
}

// GetByID retrieves an order by its ID along with its lines.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", classifyError(err))
	}

	lines, err := r.lines(ctx, r.pool, id)
	if err != nil {
		return nil, nil, err
	}

	return order, lines, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", classifyError(err))
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", classifyError(err))
	}

	return orders, nil
}

// LockOrder locks an order row inside tx and returns it with its lines.
func (r *orderRepository) LockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to lock order")
		return nil, nil, fmt.Errorf("failed to lock order: %w", classifyError(err))
	}

	lines, err := r.lines(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	return order, lines, nil
}

func (r *orderRepository) lines(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, quantity, unit_price, line_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order lines")
		return nil, fmt.Errorf("failed to query order lines: %w", classifyError(err))
	}
	defer rows.Close()

	lines := []model.OrderLine{}
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LinePrice); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order line row")
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order line rows")
		return nil, fmt.Errorf("error iterating order lines: %w", classifyError(err))
	}

	return lines, nil
}

// UpdateStatus moves an order between statuses inside tx.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return false, fmt.Errorf("failed to update order status: %w", classifyError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDelivered only touches orders that are still confirmed.
func (r *orderRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, model.OrderStatusDelivered, model.OrderStatusConfirmed)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to mark order delivered")
		return false, fmt.Errorf("failed to mark order delivered: %w", classifyError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmedBefore lists confirmed orders created before t, oldest first.
func (r *orderRepository) ConfirmedBefore(ctx context.Context, t time.Time) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, model.OrderStatusConfirmed, t)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query overdue orders")
		return nil, fmt.Errorf("failed to query overdue orders: %w", classifyError(err))
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// GetLineDetail returns one order line with its owner and product name.
func (r *orderRepository) GetLineDetail(ctx context.Context, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error) {
	var d model.OrderLineDetail
	err := r.pool.QueryRow(ctx, `
		SELECT ol.order_id, ol.product_id, ol.quantity, ol.unit_price, ol.line_price,
		       o.user_id, p.name, o.status
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = $1 AND ol.product_id = $2
	`, orderID, productID).Scan(
		&d.OrderID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.LinePrice,
		&d.UserID, &d.ProductName, &d.OrderStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).
			Str("order_id", orderID.String()).
			Str("product_id", productID).
			Msg("failed to query order line")
		return nil, fmt.Errorf("failed to query order line: %w", classifyError(err))
	}
	return &d, nil
}
