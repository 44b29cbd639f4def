package model

import (
	"time"

	"commerce-core/internal/pricing"
)

// CartLine is one product in a user's cart.
type CartLine struct {
	UserID    string    `json:"userId" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Name      string    `json:"name,omitempty" db:"name"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// CartViewLine is a cart line as presented to callers, with its derived total.
type CartViewLine struct {
	CartLine
	LineTotal int64 `json:"lineTotal"`
}

// CartView is the freshly computed state of a cart.
type CartView struct {
	UserID  string            `json:"userId"`
	Lines   []CartViewLine    `json:"lines"`
	Tier    string            `json:"membershipTier"`
	Pricing pricing.Breakdown `json:"pricing"`
}

// AddToCartRequest represents the request payload for adding to a cart.
// Either ProductID or Name must be set.
type AddToCartRequest struct {
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// SetQuantityRequest represents the request payload for overwriting a quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}
