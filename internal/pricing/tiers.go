package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TierBasic is applied to users without a membership record.
const TierBasic = "basic"

// Tiers looks up membership tiers by name.
type Tiers map[string]Tier

// DefaultTiers returns the standard membership ladder.
func DefaultTiers() Tiers {
	return Tiers{
		TierBasic: {Name: TierBasic, DiscountRate: decimal.Zero, FreeShippingThreshold: 30000},
		"silver":  {Name: "silver", DiscountRate: decimal.RequireFromString("0.03"), FreeShippingThreshold: 30000},
		"gold":    {Name: "gold", DiscountRate: decimal.RequireFromString("0.05"), FreeShippingThreshold: 20000},
		"vip":     {Name: "vip", DiscountRate: decimal.RequireFromString("0.10"), FreeShippingThreshold: 0},
	}
}

// Lookup returns the named tier, falling back to basic for unknown names.
func (t Tiers) Lookup(name string) Tier {
	if tier, ok := t[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}
	if tier, ok := t[TierBasic]; ok {
		return tier
	}
	return Tier{Name: TierBasic, DiscountRate: decimal.Zero}
}
