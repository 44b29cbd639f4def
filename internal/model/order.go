package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the logical fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusConfirmed: {OrderStatusDelivered: true, OrderStatusCancelled: true},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return orderTransitions[s][next]
}

// Order represents a customer order. Amounts are in the smallest currency unit.
type Order struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	UserID         string      `json:"userId" db:"user_id"`
	Status         OrderStatus `json:"status" db:"status"`
	Subtotal       int64       `json:"subtotal" db:"subtotal"`
	DiscountAmount int64       `json:"discountAmount" db:"discount_amount"`
	ShippingFee    int64       `json:"shippingFee" db:"shipping_fee"`
	TotalPrice     int64       `json:"totalPrice" db:"total_price"`
	MembershipTier string      `json:"membershipTier" db:"membership_tier"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderLine represents a line item in an order. It is never mutated after
// the order is created.
type OrderLine struct {
	OrderID   uuid.UUID `json:"-" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	LinePrice int64     `json:"linePrice" db:"line_price"`
}

// OrderLineDetail is an order line together with its owner and product name,
// as needed by refund intake.
type OrderLineDetail struct {
	OrderLine
	UserID      string      `json:"userId"`
	ProductName string      `json:"productName"`
	OrderStatus OrderStatus `json:"orderStatus"`
}

// CheckoutRequest represents the request payload for checking out a cart.
// An empty ProductIDs checks out the whole cart.
type CheckoutRequest struct {
	UserID         string   `json:"-"`
	ProductIDs     []string `json:"productIds,omitempty"`
	IdempotencyKey string   `json:"-"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Lines    []OrderLine `json:"lines"`
	Replayed bool        `json:"replayed,omitempty"`
}

// CheckoutClaim is a stored idempotency key for a checkout.
type CheckoutClaim struct {
	UserID         string     `db:"user_id"`
	IdempotencyKey string     `db:"idempotency_key"`
	Fingerprint    string     `db:"fingerprint"`
	OrderID        *uuid.UUID `db:"order_id"`
	ExpiresAt      time.Time  `db:"expires_at"`
}
