package repository

import (
	"context"
	"errors"
	"fmt"

	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// refundRepository implements RefundRepository using PostgreSQL.
type refundRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRefundRepository creates a new PostgreSQL-backed refund repository.
func NewRefundRepository(pool *pgxpool.Pool, logger zerolog.Logger) RefundRepository {
	return &refundRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "refund").Logger(),
	}
}

const refundColumns = `
	ticket_id, user_id, order_id, product_id, request_qty, reason, status,
	restocked_at, created_at, updated_at
`

func scanRefund(row pgx.Row) (*model.RefundRequest, error) {
	var t model.RefundRequest
	err := row.Scan(
		&t.TicketID,
		&t.UserID,
		&t.OrderID,
		&t.ProductID,
		&t.RequestQty,
		&t.Reason,
		&t.Status,
		&t.RestockedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *refundRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// LockOrderLine serializes every ledger write for one (order, product) pair.
// The order row is share-locked so a concurrent cancellation waits.
func (r *refundRepository) LockOrderLine(ctx context.Context, tx pgx.Tx, userID string, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error) {
	var d model.OrderLineDetail
	err := tx.QueryRow(ctx, `
		SELECT ol.order_id, ol.product_id, ol.quantity, ol.unit_price, ol.line_price,
		       o.user_id, o.status
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE ol.order_id = $1 AND ol.product_id = $2 AND o.user_id = $3
		FOR UPDATE OF ol FOR SHARE OF o
	`, orderID, productID, userID).Scan(
		&d.OrderID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.LinePrice,
		&d.UserID, &d.OrderStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).
			Str("order_id", orderID.String()).
			Str("product_id", productID).
			Msg("failed to lock order line")
		return nil, fmt.Errorf("failed to lock order line: %w", classifyError(err))
	}
	return &d, nil
}

// SumActive totals active request quantities for one order line.
func (r *refundRepository) SumActive(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, productID string) (int, error) {
	var total int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(request_qty), 0)
		FROM refund_requests
		WHERE order_id = $1 AND product_id = $2 AND status = ANY($3)
	`, orderID, productID, activeStatusNames()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active refunds: %w", classifyError(err))
	}
	return total, nil
}

// CountActiveForOrder counts active tickets across an order.
func (r *refundRepository) CountActiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM refund_requests
		WHERE order_id = $1 AND status = ANY($2)
	`, orderID, activeStatusNames()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active refunds: %w", classifyError(err))
	}
	return n, nil
}

// Insert writes a new ticket. The guard trigger may reject it.
func (r *refundRepository) Insert(ctx context.Context, tx pgx.Tx, t *model.RefundRequest) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO refund_requests (
			ticket_id, user_id, order_id, product_id, request_qty, reason, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.TicketID, t.UserID, t.OrderID, t.ProductID, t.RequestQty, t.Reason, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		err = classifyError(err)
		event := r.logger.Error().Err(err).
			Str("ticket_id", t.TicketID.String()).
			Str("order_id", t.OrderID.String()).
			Str("product_id", t.ProductID).
			Int("request_qty", t.RequestQty)
		if errors.Is(err, model.ErrIntegrityViolation) {
			event.Msg("refund guard rejected ticket")
		} else {
			event.Msg("failed to insert refund ticket")
		}
		return fmt.Errorf("failed to insert refund ticket: %w", err)
	}
	return nil
}

// GetByID returns a ticket, or nil when missing.
func (r *refundRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error) {
	t, err := scanRefund(r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE ticket_id = $1`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query refund ticket: %w", classifyError(err))
	}
	return t, nil
}

// LockByID locks a ticket inside tx.
func (r *refundRepository) LockByID(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*model.RefundRequest, error) {
	t, err := scanRefund(tx.QueryRow(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE ticket_id = $1 FOR UPDATE`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock refund ticket: %w", classifyError(err))
	}
	return t, nil
}

// UpdateStatus sets a ticket's status inside tx and returns the new row.
func (r *refundRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status model.RefundStatus) (*model.RefundRequest, error) {
	t, err := scanRefund(tx.QueryRow(ctx, `
		UPDATE refund_requests SET status = $2, updated_at = NOW()
		WHERE ticket_id = $1
		RETURNING `+refundColumns, ticketID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		err = classifyError(err)
		r.logger.Error().Err(err).
			Str("ticket_id", ticketID.String()).
			Str("status", string(status)).
			Msg("failed to update refund status")
		return nil, fmt.Errorf("failed to update refund status: %w", err)
	}
	return t, nil
}

// MarkRestocked stamps restocked_at once.
func (r *refundRepository) MarkRestocked(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE refund_requests SET restocked_at = NOW(), updated_at = NOW()
		WHERE ticket_id = $1 AND restocked_at IS NULL
	`, ticketID)
	if err != nil {
		return false, fmt.Errorf("failed to mark refund restocked: %w", classifyError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListByOrder returns an order's tickets, oldest first.
func (r *refundRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RefundRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+refundColumns+`
		FROM refund_requests
		WHERE order_id = $1
		ORDER BY created_at, ticket_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query refund tickets: %w", classifyError(err))
	}
	defer rows.Close()

	tickets := []model.RefundRequest{}
	for rows.Next() {
		t, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refund tickets: %w", classifyError(err))
	}
	return tickets, nil
}

func activeStatusNames() []string {
	names := make([]string, len(model.ActiveRefundStatuses))
	for i, s := range model.ActiveRefundStatuses {
		names[i] = string(s)
	}
	return names
}
