package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-core/internal/model"
	"commerce-core/internal/repository"

	"github.com/rs/zerolog"
)

// catalogService implements ProductService over the products table and the
// stock ledger.
type catalogService struct {
	products repository.ProductRepository
	stock    repository.StockRepository
	logger   zerolog.Logger
}

// NewProductService creates the catalogue read path.
func NewProductService(products repository.ProductRepository, stock repository.StockRepository, logger zerolog.Logger) ProductService {
	return &catalogService{
		products: products,
		stock:    stock,
		logger:   logger.With().Str("service", "catalogue").Logger(),
	}
}

// List pages through the catalogue with each product's available quantity.
func (s *catalogService) List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	filter.Category = strings.TrimSpace(filter.Category)

	entries, err := s.products.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).
			Str("category", filter.Category).
			Bool("in_stock_only", filter.InStockOnly).
			Msg("failed to list catalogue")
		return nil, fmt.Errorf("failed to list catalogue: %w", err)
	}

	s.logger.Debug().
		Int("count", len(entries)).
		Str("category", filter.Category).
		Int("offset", filter.Offset).
		Msg("listed catalogue")

	return entries, nil
}

// Get returns one product with its available quantity. A product that has
// never been stocked reports zero.
func (s *catalogService) Get(ctx context.Context, productID string) (*model.CatalogEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, model.ErrProductNotFound
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound.WithMessage("product %s not found", productID)
	}

	available, err := s.stock.Available(ctx, productID)
	if err != nil && !errors.Is(err, model.ErrProductNotFound) {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("failed to read stock")
		return nil, fmt.Errorf("failed to read stock: %w", err)
	}

	return &model.CatalogEntry{
		Product:           *product,
		AvailableQuantity: available,
		InStock:           available > 0,
	}, nil
}

// clampPage bounds pagination to 1..100 rows from a non-negative offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
