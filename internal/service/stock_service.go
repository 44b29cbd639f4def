package service

import (
	"context"
	"fmt"
	"time"

	"commerce-core/internal/model"
	"commerce-core/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// stockService implements StockService.
type stockService struct {
	stockRepo repository.StockRepository
	txTimeout time.Duration
	logger    zerolog.Logger
}

// NewStockService creates a new stock service. Reservations and releases run
// under txTimeout.
func NewStockService(stockRepo repository.StockRepository, txTimeout time.Duration, logger zerolog.Logger) StockService {
	return &stockService{
		stockRepo: stockRepo,
		txTimeout: txTimeout,
		logger:    logger.With().Str("service", "stock").Logger(),
	}
}

// PeekAvailable returns the product's available quantity without locking.
func (s *stockService) PeekAvailable(ctx context.Context, productID string) (int, error) {
	if productID == "" {
		return 0, model.ErrInvalidInput.WithMessage("product ID is required")
	}

	qty, err := s.stockRepo.Available(ctx, productID)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

// ReserveAll decrements every item in its own transaction.
func (s *stockService) ReserveAll(ctx context.Context, items []model.StockItem) error {
	if err := validateStockItems(items); err != nil {
		return err
	}
	return s.inTx(ctx, "reserve", func(ctx context.Context, tx pgx.Tx) error {
		return s.stockRepo.ReserveAll(ctx, tx, items)
	})
}

// ReleaseAll increments every item in its own transaction.
func (s *stockService) ReleaseAll(ctx context.Context, items []model.StockItem) error {
	if err := validateStockItems(items); err != nil {
		return err
	}
	return s.inTx(ctx, "release", func(ctx context.Context, tx pgx.Tx) error {
		return s.stockRepo.ReleaseAll(ctx, tx, items)
	})
}

func (s *stockService) inTx(ctx context.Context, op string, fn func(context.Context, pgx.Tx) error) (err error) {
	ctx, cancel := withTxTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.stockRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("failed to begin transaction")
		return fmt.Errorf("failed to %s stock: %w", op, err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	if err = fn(ctx, tx); err != nil {
		s.logger.Warn().Err(err).Str("op", op).Msg("stock operation failed")
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("failed to commit transaction")
		return fmt.Errorf("failed to %s stock: %w", op, err)
	}
	return nil
}

func validateStockItems(items []model.StockItem) error {
	if len(items) == 0 {
		return model.ErrInvalidInput.WithMessage("at least one stock item is required")
	}
	_, err := repository.MergeStockItems(items)
	return err
}
