package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SeedProduct is one catalogue entry with its starting stock.
type SeedProduct struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitPrice int64  `json:"unitPrice"`
	Stock     int    `json:"stock"`
}

// SeedMembership assigns a tier to a user.
type SeedMembership struct {
	UserID string `json:"userId"`
	Tier   string `json:"tier"`
}

// Catalog is the seed file format.
type Catalog struct {
	Products    []SeedProduct    `json:"products"`
	Memberships []SeedMembership `json:"memberships"`
}

// SampleCatalog is loaded when no seed file is given.
func SampleCatalog() Catalog {
	return Catalog{
		Products: []SeedProduct{
			{ID: "P001", Name: "Ceramic Mug", Category: "Kitchen", UnitPrice: 1200, Stock: 50},
			{ID: "P002", Name: "Espresso Machine", Category: "Kitchen", UnitPrice: 25000, Stock: 5},
			{ID: "P003", Name: "Desk Lamp", Category: "Home", UnitPrice: 4500, Stock: 20},
			{ID: "P004", Name: "Wireless Mouse", Category: "Electronics", UnitPrice: 3500, Stock: 30},
			{ID: "P005", Name: "Noise Cancelling Headphones", Category: "Electronics", UnitPrice: 19900, Stock: 8},
		},
		Memberships: []SeedMembership{
			{UserID: "demo-gold", Tier: "gold"},
			{UserID: "demo-vip", Tier: "vip"},
		},
	}
}

// DecodeCatalog reads a JSON catalogue and checks it.
func DecodeCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects entries the schema would refuse.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		switch {
		case p.ID == "" || p.Name == "":
			return fmt.Errorf("product %q: id and name are required", p.ID)
		case p.UnitPrice < 0:
			return fmt.Errorf("product %q: unit price cannot be negative", p.ID)
		case p.Stock < 0:
			return fmt.Errorf("product %q: stock cannot be negative", p.ID)
		case seen[p.ID]:
			return fmt.Errorf("product %q: duplicate id", p.ID)
		}
		seen[p.ID] = true
	}
	for _, m := range c.Memberships {
		if m.UserID == "" || m.Tier == "" {
			return fmt.Errorf("membership for %q: user and tier are required", m.UserID)
		}
	}
	return nil
}

// Seed upserts the catalogue in one transaction. Prices and names are
// overwritten; stock is reset to the seeded quantity.
func Seed(ctx context.Context, pool *pgxpool.Pool, c Catalog, logger zerolog.Logger) (err error) {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Error().Err(rbErr).Msg("failed to rollback seed")
			}
		}
	}()

	batch := &pgx.Batch{}
	for _, p := range c.Products {
		batch.Queue(`
			INSERT INTO products (id, name, category, unit_price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category, unit_price = EXCLUDED.unit_price
		`, p.ID, p.Name, p.Category, p.UnitPrice)
		batch.Queue(`
			INSERT INTO stock_records (product_id, available_quantity)
			VALUES ($1, $2)
			ON CONFLICT (product_id) DO UPDATE
			SET available_quantity = EXCLUDED.available_quantity, updated_at = NOW()
		`, p.ID, p.Stock)
	}
	for _, m := range c.Memberships {
		batch.Queue(`
			INSERT INTO memberships (user_id, tier) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()
		`, m.UserID, m.Tier)
	}

	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	logger.Info().
		Int("products", len(c.Products)).
		Int("memberships", len(c.Memberships)).
		Msg("catalog seeded")
	return nil
}
