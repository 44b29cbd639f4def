package service

import (
	"context"
	"fmt"
	"time"

	"commerce-core/internal/events"
	"commerce-core/internal/model"
	"commerce-core/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	refundRepo repository.RefundRepository
	stockRepo  repository.StockRepository
	emitter    events.Emitter
	txTimeout  time.Duration
	logger     zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	refundRepo repository.RefundRepository,
	stockRepo repository.StockRepository,
	emitter events.Emitter,
	txTimeout time.Duration,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		refundRepo: refundRepo,
		stockRepo:  stockRepo,
		emitter:    emitter,
		txTimeout:  txTimeout,
		logger:     logger.With().Str("service", "order").Logger(),
	}
}

// Get retrieves one of the user's orders with its lines. Orders owned by
// someone else are reported as not found.
func (s *orderService) Get(ctx context.Context, userID string, id uuid.UUID) (*model.OrderResponse, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	order, lines, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil || order.UserID != userID {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return &model.OrderResponse{Order: *order, Lines: lines}, nil
}

// List retrieves the user's orders with pagination.
func (s *orderService) List(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}
	limit, offset = clampPage(limit, offset)

	orders, err := s.orderRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Cancel moves a confirmed order to cancelled and returns every line to
// stock in the same transaction. Orders with active refund tickets cannot
// be cancelled.
func (s *orderService) Cancel(ctx context.Context, userID string, id uuid.UUID) (resp *model.OrderResponse, err error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	ctx, cancel := withTxTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	order, lines, err := s.orderRepo.LockOrder(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}

	if !order.Status.CanTransition(model.OrderStatusCancelled) {
		return nil, model.ErrInvalidTransition.WithMessage("order is already %s", order.Status)
	}

	active, err := s.refundRepo.CountActiveForOrder(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}
	if active > 0 {
		return nil, model.ErrActiveRefunds.WithMessage("order has %d active refund request(s)", active)
	}

	items := make([]model.StockItem, len(lines))
	for i, l := range lines {
		items[i] = model.StockItem{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	if len(items) > 0 {
		if err = s.stockRepo.ReleaseAll(ctx, tx, items); err != nil {
			return nil, fmt.Errorf("failed to restock order: %w", err)
		}
	}

	ok, err := s.orderRepo.UpdateStatus(ctx, tx, id, model.OrderStatusConfirmed, model.OrderStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		return nil, model.ErrTransactionConflict.WithMessage("order status changed concurrently")
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	order.Status = model.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()

	s.logger.Info().
		Str("order_id", id.String()).
		Int("line_count", len(lines)).
		Msg("order cancelled and restocked")

	if s.emitter != nil {
		s.emitter.Emit(ctx, events.OrderCancelled, id.String(), map[string]any{
			"order_id":  id,
			"user_id":   userID,
			"restocked": items,
		})
	}

	return &model.OrderResponse{Order: *order, Lines: lines}, nil
}
