package model

import "time"

// Product represents a catalogue item with its authoritative unit price.
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// StockRecord is the available quantity of a product.
type StockRecord struct {
	ProductID         string    `json:"productId" db:"product_id"`
	AvailableQuantity int       `json:"availableQuantity" db:"available_quantity"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// StockItem is a quantity of one product to reserve or release.
type StockItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ResolvedProduct is what the catalogue returns for a free-text product name.
// Price and stock are informational only; both are re-read before use.
type ResolvedProduct struct {
	ProductID         string `json:"productId"`
	Name              string `json:"name"`
	UnitPrice         int64  `json:"unitPrice"`
	AvailableQuantity int    `json:"availableQuantity"`
}

// CatalogEntry is a product as the catalogue lists it, with its current
// stock. The quantity is an unlocked read.
type CatalogEntry struct {
	Product
	AvailableQuantity int  `json:"availableQuantity"`
	InStock           bool `json:"inStock"`
}

// CatalogFilter narrows a catalogue listing.
type CatalogFilter struct {
	Category    string
	InStockOnly bool
	Limit       int
	Offset      int
}
