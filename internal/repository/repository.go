package repository

import (
	"context"
	"time"

	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// List returns catalogue entries with their stock, filtered and paged.
	List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error)

	// GetByID retrieves a single product by its ID. It returns nil when the
	// product does not exist.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// PricesForUpdate reads the authoritative unit prices of ids inside tx,
	// share-locking the rows until tx ends.
	PricesForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]int64, error)

	// FindByName resolves a free-text name to a product with its stock.
	FindByName(ctx context.Context, name string) (*model.ResolvedProduct, error)
}

// StockRepository defines the stock ledger's storage.
type StockRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Available is an unlocked read of a product's available quantity.
	Available(ctx context.Context, productID string) (int, error)

	// ReserveAll decrements every item inside tx or none of them. A shortage
	// returns *model.InsufficientStockError listing each short product.
	ReserveAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error

	// ReleaseAll increments every item inside tx.
	ReleaseAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error
}

// MembershipRepository resolves a user's membership tier.
type MembershipRepository interface {
	// TierOf returns the stored tier name, or "" when the user has none.
	TierOf(ctx context.Context, userID string) (string, error)
}

// CartRepository defines the cart store.
type CartRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// List returns the user's cart lines ordered by product ID.
	List(ctx context.Context, userID string) ([]model.CartLine, error)

	// Quantity returns the current quantity of a line, or 0.
	Quantity(ctx context.Context, userID, productID string) (int, error)

	// AddWithinLimit accumulates qty onto the line in one conditional upsert.
	// ok is false and nothing is written when the result would exceed limit.
	AddWithinLimit(ctx context.Context, userID, productID string, qty int, unitPrice int64, limit int) (newQty int, ok bool, err error)

	// Set overwrites the line's quantity.
	Set(ctx context.Context, userID, productID string, qty int, unitPrice int64) error

	// Remove deletes a line and reports whether it existed.
	Remove(ctx context.Context, userID, productID string) (bool, error)

	// Clear deletes every line of the user.
	Clear(ctx context.Context, userID string) (int64, error)

	// LockLines locks and returns the user's lines inside tx.
	LockLines(ctx context.Context, tx pgx.Tx, userID string) ([]model.CartLine, error)

	// DeleteLines removes the given products from the cart inside tx.
	DeleteLines(ctx context.Context, tx pgx.Tx, userID string, productIDs []string) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderLines inserts the order's lines within the provided transaction.
	CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error

	// GetByID retrieves an order by its ID along with its lines. It returns
	// nil when the order does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error)

	// LockOrder locks an order row inside tx. It returns nil when missing.
	LockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, []model.OrderLine, error)

	// UpdateStatus moves an order from one status to another inside tx and
	// reports whether the row was still in the expected status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.OrderStatus) (bool, error)

	// MarkDelivered moves a confirmed order to delivered outside any caller
	// transaction. Orders in any other status are left alone.
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)

	// ConfirmedBefore lists orders still confirmed that were created before t.
	ConfirmedBefore(ctx context.Context, t time.Time) ([]model.Order, error)

	// GetLineDetail returns one order line with its owner and product name.
	GetLineDetail(ctx context.Context, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error)
}

// IdempotencyRepository stores checkout idempotency claims.
type IdempotencyRepository interface {
	// Claim records claim inside tx. When an unexpired claim for the same
	// user and key already exists it is returned instead and claimed is false.
	Claim(ctx context.Context, tx pgx.Tx, claim model.CheckoutClaim) (existing *model.CheckoutClaim, claimed bool, err error)

	// AttachOrder records the order created for a claim inside tx.
	AttachOrder(ctx context.Context, tx pgx.Tx, userID, key string, orderID uuid.UUID) error

	// PurgeExpired deletes claims that expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefundRepository defines the refund ledger's storage.
type RefundRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// LockOrderLine locks the order line owned by userID inside tx. It
	// returns nil when the order, the line or the ownership does not match.
	LockOrderLine(ctx context.Context, tx pgx.Tx, userID string, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error)

	// SumActive totals request_qty of active tickets for one order line.
	SumActive(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, productID string) (int, error)

	// CountActiveForOrder counts active tickets across an order.
	CountActiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)

	// Insert writes a new ticket inside tx.
	Insert(ctx context.Context, tx pgx.Tx, ticket *model.RefundRequest) error

	// GetByID returns a ticket, or nil when missing.
	GetByID(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error)

	// LockByID locks a ticket inside tx, or returns nil when missing.
	LockByID(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*model.RefundRequest, error)

	// UpdateStatus sets a ticket's status inside tx.
	UpdateStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status model.RefundStatus) (*model.RefundRequest, error)

	// MarkRestocked stamps restocked_at inside tx and reports whether it was
	// previously unset.
	MarkRestocked(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (bool, error)

	// ListByOrder returns an order's tickets, oldest first.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RefundRequest, error)
}
