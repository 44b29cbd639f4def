package service

import (
	"context"

	"commerce-core/internal/model"

	"github.com/google/uuid"
)

// ProductService defines operations for browsing the catalogue.
type ProductService interface {
	// List pages through the catalogue with stock levels.
	List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error)

	// Get returns one product with its stock level.
	Get(ctx context.Context, productID string) (*model.CatalogEntry, error)
}

// CartService defines the cart store. Every mutation returns the freshly
// priced cart.
type CartService interface {
	// Add accumulates qty onto the product's line.
	Add(ctx context.Context, userID, productID string, qty int) (*model.CartView, error)

	// AddByName resolves a free-text name through the catalogue, then adds.
	AddByName(ctx context.Context, userID, name string, qty int) (*model.CartView, error)

	// SetQuantity overwrites the line's quantity. qty <= 0 removes the line.
	SetQuantity(ctx context.Context, userID, productID string, qty int) (*model.CartView, error)

	// Remove deletes the product's line.
	Remove(ctx context.Context, userID, productID string) (*model.CartView, error)

	// Clear empties the cart.
	Clear(ctx context.Context, userID string) (*model.CartView, error)

	// View prices the cart without changing it.
	View(ctx context.Context, userID string) (*model.CartView, error)
}

// StockService defines the stock ledger.
type StockService interface {
	// PeekAvailable is an unlocked read of a product's stock.
	PeekAvailable(ctx context.Context, productID string) (int, error)

	// ReserveAll decrements every item in one transaction, or none.
	ReserveAll(ctx context.Context, items []model.StockItem) error

	// ReleaseAll increments every item in one transaction.
	ReleaseAll(ctx context.Context, items []model.StockItem) error
}

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.OrderResponse, error)
}

// OrderService defines order queries and cancellation.
type OrderService interface {
	// Get returns one of the user's orders.
	Get(ctx context.Context, userID string, id uuid.UUID) (*model.OrderResponse, error)

	// List returns the user's orders, newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]model.Order, error)

	// Cancel moves a confirmed order to cancelled and restocks its lines.
	Cancel(ctx context.Context, userID string, id uuid.UUID) (*model.OrderResponse, error)
}

// RefundService defines the refund ledger.
type RefundService interface {
	// RequestRefund files a ticket for at most the remaining refundable
	// quantity of one order line.
	RequestRefund(ctx context.Context, req *model.RefundRequestInput) (*model.RefundResult, error)

	// UpdateStatus moves a ticket through its lifecycle.
	UpdateStatus(ctx context.Context, ticketID uuid.UUID, status model.RefundStatus) (*model.RefundRequest, error)

	// Restock returns an approved or refunded ticket's quantity to stock, once.
	Restock(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error)

	// Get returns one ticket.
	Get(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error)

	// ListForOrder returns the tickets filed against one of the user's orders.
	ListForOrder(ctx context.Context, userID string, orderID uuid.UUID) ([]model.RefundRequest, error)
}

// ProductResolver maps a free-text product name to a catalogue entry.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, name string) (*model.ResolvedProduct, error)
}

// DeliveryScheduler arranges the confirmed to delivered transition.
type DeliveryScheduler interface {
	Schedule(order model.Order)
}
