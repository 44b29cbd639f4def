package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"commerce-core/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// stockRepository implements StockRepository using PostgreSQL row locks.
type stockRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool *pgxpool.Pool, logger zerolog.Logger) StockRepository {
	return &stockRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "stock").Logger(),
	}
}

func (r *stockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return beginTx(ctx, r.pool, r.logger)
}

// Available returns the unlocked available quantity.
func (r *stockRepository) Available(ctx context.Context, productID string) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx,
		`SELECT available_quantity FROM stock_records WHERE product_id = $1`,
		productID,
	).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound.WithMessage("product %s not found", productID)
		}
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to read stock")
		return 0, fmt.Errorf("failed to read stock: %w", classifyError(err))
	}
	return qty, nil
}

// ReserveAll locks rows in ascending product ID order so that concurrent
// reservations over overlapping products cannot deadlock.
func (r *stockRepository) ReserveAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error {
	merged, err := MergeStockItems(items)
	if err != nil {
		return err
	}

	var shortages []model.StockShortage
	for _, it := range merged {
		available, err := r.lockRow(ctx, tx, it.ProductID)
		if err != nil {
			return err
		}
		if available < it.Quantity {
			shortages = append(shortages, model.StockShortage{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: available,
			})
		}
	}

	if len(shortages) > 0 {
		r.logger.Info().
			Int("short_products", len(shortages)).
			Msg("reservation rejected")
		return model.NewInsufficientStockError(shortages...)
	}

	for _, it := range merged {
		if err := r.adjust(ctx, tx, it.ProductID, -it.Quantity); err != nil {
			return err
		}
	}

	r.logger.Debug().Int("products", len(merged)).Msg("stock reserved")
	return nil
}

// ReleaseAll is the inverse of ReserveAll and uses the same lock order.
func (r *stockRepository) ReleaseAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error {
	merged, err := MergeStockItems(items)
	if err != nil {
		return err
	}

	for _, it := range merged {
		if _, err := r.lockRow(ctx, tx, it.ProductID); err != nil {
			return err
		}
		if err := r.adjust(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}

	r.logger.Debug().Int("products", len(merged)).Msg("stock released")
	return nil
}

func (r *stockRepository) lockRow(ctx context.Context, tx pgx.Tx, productID string) (int, error) {
	var available int
	err := tx.QueryRow(ctx,
		`SELECT available_quantity FROM stock_records WHERE product_id = $1 FOR UPDATE`,
		productID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrProductNotFound.WithMessage("product %s not found", productID)
		}
		r.logger.Error().Err(err).Str("product_id", productID).Msg("failed to lock stock row")
		return 0, fmt.Errorf("failed to lock stock row: %w", classifyError(err))
	}
	return available, nil
}

func (r *stockRepository) adjust(ctx context.Context, tx pgx.Tx, productID string, delta int) error {
	_, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET available_quantity = available_quantity + $2, updated_at = NOW()
		WHERE product_id = $1
	`, productID, delta)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID).Int("delta", delta).Msg("failed to adjust stock")
		return fmt.Errorf("failed to adjust stock: %w", classifyError(err))
	}
	return nil
}

// MergeStockItems sums duplicate products and sorts by product ID. Every
// quantity must be positive.
func MergeStockItems(items []model.StockItem) ([]model.StockItem, error) {
	totals := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, model.ErrInvalidInput.WithMessage("product ID is required")
		}
		if it.Quantity <= 0 {
			return nil, model.ErrInvalidQuantity.WithMessage("quantity for %s must be greater than zero", it.ProductID)
		}
		totals[it.ProductID] += it.Quantity
	}

	merged := make([]model.StockItem, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, model.StockItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}
