package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-core/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// List returns catalogue entries joined to their stock, ordered by name.
// A product without a stock record lists as zero available.
func (r *productRepository) List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error) {
	query := `
		SELECT p.id, p.name, p.category, p.unit_price, p.created_at,
		       COALESCE(s.available_quantity, 0)
		FROM products p
		LEFT JOIN stock_records s ON s.product_id = p.id
		WHERE ($1::text = '' OR LOWER(p.category) = LOWER($1::text))
		  AND (NOT $2::boolean OR COALESCE(s.available_quantity, 0) > 0)
		ORDER BY p.name, p.id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, filter.Category, filter.InStockOnly, filter.Limit, filter.Offset)
	if err != nil {
		r.logger.Error().Err(err).
			Str("category", filter.Category).
			Int("limit", filter.Limit).
			Int("offset", filter.Offset).
			Msg("failed to query catalogue")
		return nil, fmt.Errorf("failed to query catalogue: %w", classifyError(err))
	}
	defer rows.Close()

	entries := []model.CatalogEntry{}
	for rows.Next() {
		var e model.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.UnitPrice, &e.CreatedAt, &e.AvailableQuantity); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan catalogue row")
			return nil, fmt.Errorf("failed to scan catalogue entry: %w", err)
		}
		e.InStock = e.AvailableQuantity > 0
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating catalogue rows")
		return nil, fmt.Errorf("error iterating catalogue: %w", classifyError(err))
	}

	return entries, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `
		SELECT id, name, category, unit_price, created_at
		FROM products
		WHERE id = $1
	`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", classifyError(err))
	}

	return &p, nil
}

// PricesForUpdate reads unit prices inside tx and holds a share lock on each
// row, so a price change waits until tx ends. Products missing from the
// result no longer exist.
func (r *productRepository) PricesForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	query := `
		SELECT id, unit_price
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR SHARE
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query product prices")
		return nil, fmt.Errorf("failed to query product prices: %w", classifyError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("failed to scan product price: %w", err)
		}
		prices[id] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product prices: %w", classifyError(err))
	}

	return prices, nil
}

// FindByName matches case-insensitively, preferring an exact name and then
// the shortest name containing the query.
func (r *productRepository) FindByName(ctx context.Context, name string) (*model.ResolvedProduct, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	query := `
		SELECT p.id, p.name, p.unit_price, COALESCE(s.available_quantity, 0)
		FROM products p
		LEFT JOIN stock_records s ON s.product_id = p.id
		WHERE LOWER(p.name) = LOWER($1)
		   OR p.name ILIKE '%' || $1 || '%'
		ORDER BY (LOWER(p.name) = LOWER($1)) DESC, LENGTH(p.name), p.id
		LIMIT 1
	`

	var rp model.ResolvedProduct
	err := r.pool.QueryRow(ctx, query, name).Scan(&rp.ProductID, &rp.Name, &rp.UnitPrice, &rp.AvailableQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("name", name).Msg("no product matches name")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("name", name).Msg("failed to resolve product name")
		return nil, fmt.Errorf("failed to resolve product name: %w", classifyError(err))
	}

	return &rp, nil
}
