// Package pricing computes order totals. It performs no I/O and is shared by
// the cart view and checkout so both produce identical numbers.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultBaseShippingFee is charged when the discounted subtotal is below the
// tier's free shipping threshold.
const DefaultBaseShippingFee int64 = 3000

// Line is a priced quantity.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Tier is a membership level's pricing policy.
type Tier struct {
	Name                  string          `json:"name"`
	DiscountRate          decimal.Decimal `json:"discountRate"`
	FreeShippingThreshold int64           `json:"freeShippingThreshold"`
}

// Breakdown is the result of pricing a set of lines.
type Breakdown struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discountAmount"`
	ShippingFee    int64 `json:"shippingFee"`
	Total          int64 `json:"total"`
}

// Calculate prices lines for a tier.
//
// The discount is subtotal × rate truncated toward zero, never rounded, so
// stored orders and any later recomputation agree to the unit.
func Calculate(lines []Line, tier Tier, baseShippingFee int64) Breakdown {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPrice * int64(l.Quantity)
	}

	if len(lines) == 0 {
		return Breakdown{}
	}

	discount := decimal.NewFromInt(subtotal).Mul(tier.DiscountRate).Floor().IntPart()
	if discount < 0 {
		discount = 0
	}

	shipping := baseShippingFee
	if subtotal-discount >= tier.FreeShippingThreshold {
		shipping = 0
	}

	total := subtotal - discount + shipping
	if total < 0 {
		total = 0
	}

	return Breakdown{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingFee:    shipping,
		Total:          total,
	}
}

// Validate checks that a tier's policy is usable.
func (t Tier) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tier name is required")
	}
	if t.DiscountRate.IsNegative() || t.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tier %s: discount rate must be between 0 and 1", t.Name)
	}
	if t.FreeShippingThreshold < 0 {
		return fmt.Errorf("tier %s: free shipping threshold must not be negative", t.Name)
	}
	return nil
}
