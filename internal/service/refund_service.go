package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-core/internal/events"
	"commerce-core/internal/metrics"
	"commerce-core/internal/model"
	"commerce-core/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxReasonLength bounds the free-text refund reason.
const maxReasonLength = 1000

// refundService implements RefundService.
type refundService struct {
	refundRepo repository.RefundRepository
	orderRepo  repository.OrderRepository
	stockRepo  repository.StockRepository
	emitter    events.Emitter
	metrics    *metrics.Metrics
	txTimeout  time.Duration
	logger     zerolog.Logger
}

// NewRefundService creates a new refund service.
func NewRefundService(
	refundRepo repository.RefundRepository,
	orderRepo repository.OrderRepository,
	stockRepo repository.StockRepository,
	emitter events.Emitter,
	m *metrics.Metrics,
	txTimeout time.Duration,
	logger zerolog.Logger,
) RefundService {
	return &refundService{
		refundRepo: refundRepo,
		orderRepo:  orderRepo,
		stockRepo:  stockRepo,
		emitter:    emitter,
		metrics:    m,
		txTimeout:  txTimeout,
		logger:     logger.With().Str("service", "refund").Logger(),
	}
}

// RequestRefund files a ticket for min(requested, remaining) units of one
// order line. When nothing remains no ticket is written and the decision is
// RefundNothingToRefund. Stock is never touched.
func (s *refundService) RequestRefund(ctx context.Context, req *model.RefundRequestInput) (*model.RefundResult, error) {
	status, err := validateRefundRequest(req)
	if err != nil {
		s.metrics.ObserveRefund(string(model.KindOf(err)))
		return nil, err
	}

	txCtx, cancel := withTxTimeout(ctx, s.txTimeout)
	defer cancel()

	result, err := s.requestRefund(txCtx, req, status)
	if err != nil {
		s.metrics.ObserveRefund(string(model.KindOf(err)))
		return nil, err
	}
	s.metrics.ObserveRefund(string(result.Decision))

	if result.Accepted() && s.emitter != nil {
		s.emitter.Emit(ctx, events.RefundRequested, req.OrderID.String(), result)
	}

	return result, nil
}

func (s *refundService) requestRefund(ctx context.Context, req *model.RefundRequestInput, status model.RefundStatus) (result *model.RefundResult, err error) {
	tx, err := s.refundRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to request refund: %w", err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	line, err := s.refundRepo.LockOrderLine(ctx, tx, req.UserID, req.OrderID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to request refund: %w", err)
	}
	if line == nil {
		return nil, model.ErrOrderLineNotFound.WithMessage("order %s has no line for product %s", req.OrderID, req.ProductID)
	}
	if line.OrderStatus == model.OrderStatusCancelled {
		return nil, model.ErrInvalidInput.WithMessage("order %s was cancelled", req.OrderID)
	}

	active, err := s.refundRepo.SumActive(ctx, tx, req.OrderID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to request refund: %w", err)
	}

	remaining := line.Quantity - active
	result = &model.RefundResult{
		RequestedQty: req.Quantity,
		Remaining:    remaining,
	}

	if remaining <= 0 {
		result.Decision = model.RefundNothingToRefund
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to request refund: %w", err)
		}
		s.logger.Info().
			Str("order_id", req.OrderID.String()).
			Str("product_id", req.ProductID).
			Msg("nothing left to refund")
		return result, nil
	}

	result.Decision = model.RefundAccepted
	result.FinalQty = req.Quantity
	if req.Quantity > remaining {
		result.Decision = model.RefundCapped
		result.FinalQty = remaining
	}

	now := time.Now().UTC()
	ticket := &model.RefundRequest{
		TicketID:   uuid.New(),
		UserID:     req.UserID,
		OrderID:    req.OrderID,
		ProductID:  req.ProductID,
		RequestQty: result.FinalQty,
		Reason:     strings.TrimSpace(req.Reason),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err = s.refundRepo.Insert(ctx, tx, ticket); err != nil {
		if errors.Is(err, model.ErrIntegrityViolation) {
			s.logger.Error().Err(err).
				Str("ticket_id", ticket.TicketID.String()).
				Str("order_id", req.OrderID.String()).
				Str("product_id", req.ProductID).
				Int("request_qty", ticket.RequestQty).
				Int("remaining", remaining).
				Msg("refund ledger guard fired after application check")
		}
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticket.TicketID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to request refund: %w", err)
	}

	result.Ticket = ticket

	s.logger.Info().
		Str("ticket_id", ticket.TicketID.String()).
		Str("order_id", req.OrderID.String()).
		Str("product_id", req.ProductID).
		Str("decision", string(result.Decision)).
		Int("requested", req.Quantity).
		Int("final", result.FinalQty).
		Msg("refund request recorded")

	return result, nil
}

// UpdateStatus moves a ticket to status. Setting the current status again is
// a no-op.
func (s *refundService) UpdateStatus(ctx context.Context, ticketID uuid.UUID, status model.RefundStatus) (ticket *model.RefundRequest, err error) {
	if !status.Valid() {
		return nil, model.ErrInvalidInput.WithMessage("unknown refund status %q", status)
	}

	ctx, cancel := withTxTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.refundRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to update refund: %w", err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	current, err := s.refundRepo.LockByID(ctx, tx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to update refund: %w", err)
	}
	if current == nil {
		return nil, model.ErrTicketNotFound
	}

	if current.Status == status {
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to update refund: %w", err)
		}
		return current, nil
	}

	if !current.Status.CanTransition(status) {
		return nil, model.ErrInvalidTransition.WithMessage("cannot move refund from %s to %s", current.Status, status)
	}
	if current.RestockedAt != nil && !status.IsActive() {
		return nil, model.ErrInvalidTransition.WithMessage("refund was already restocked and cannot be %s", status)
	}

	updated, err := s.refundRepo.UpdateStatus(ctx, tx, ticketID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update refund: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticketID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update refund: %w", err)
	}

	s.logger.Info().
		Str("ticket_id", ticketID.String()).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("refund status changed")

	if s.emitter != nil {
		s.emitter.Emit(ctx, events.RefundStatusChanged, updated.OrderID.String(), map[string]any{
			"ticket_id": ticketID,
			"from":      current.Status,
			"to":        status,
		})
	}

	return updated, nil
}

// Restock returns an approved or refunded ticket's quantity to stock. It is
// never called implicitly and succeeds at most once per ticket.
func (s *refundService) Restock(ctx context.Context, ticketID uuid.UUID) (ticket *model.RefundRequest, err error) {
	ctx, cancel := withTxTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.refundRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to restock refund: %w", err)
	}
	defer rollbackOnError(ctx, tx, &err, s.logger)

	ticket, err = s.refundRepo.LockByID(ctx, tx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to restock refund: %w", err)
	}
	if ticket == nil {
		return nil, model.ErrTicketNotFound
	}

	if ticket.Status != model.RefundStatusApproved && ticket.Status != model.RefundStatusRefunded {
		return nil, model.ErrInvalidTransition.WithMessage("only approved or refunded tickets can be restocked, ticket is %s", ticket.Status)
	}
	if ticket.RestockedAt != nil {
		return nil, model.ErrAlreadyRestocked
	}

	marked, err := s.refundRepo.MarkRestocked(ctx, tx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to restock refund: %w", err)
	}
	if !marked {
		return nil, model.ErrAlreadyRestocked
	}

	if err = s.stockRepo.ReleaseAll(ctx, tx, []model.StockItem{{ProductID: ticket.ProductID, Quantity: ticket.RequestQty}}); err != nil {
		return nil, fmt.Errorf("failed to restock refund: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticketID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to restock refund: %w", err)
	}

	now := time.Now().UTC()
	ticket.RestockedAt = &now
	ticket.UpdatedAt = now

	s.logger.Info().
		Str("ticket_id", ticketID.String()).
		Str("product_id", ticket.ProductID).
		Int("quantity", ticket.RequestQty).
		Msg("refund restocked")

	return ticket, nil
}

// Get returns one ticket.
func (s *refundService) Get(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error) {
	ticket, err := s.refundRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	if ticket == nil {
		return nil, model.ErrTicketNotFound
	}
	return ticket, nil
}

// ListForOrder returns the tickets of one of the user's orders.
func (s *refundService) ListForOrder(ctx context.Context, userID string, orderID uuid.UUID) ([]model.RefundRequest, error) {
	if userID == "" {
		return nil, model.ErrMissingUser
	}

	order, _, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}

	tickets, err := s.refundRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return tickets, nil
}

// validateRefundRequest checks the request before any lock is taken and
// returns the status the ticket is filed with.
func validateRefundRequest(req *model.RefundRequestInput) (model.RefundStatus, error) {
	if req == nil {
		return "", model.ErrInvalidInput.WithMessage("refund request is nil")
	}
	if req.UserID == "" {
		return "", model.ErrMissingUser
	}
	if req.OrderID == uuid.Nil {
		return "", model.ErrInvalidInput.WithMessage("order ID is required")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return "", model.ErrInvalidInput.WithMessage("product ID is required")
	}
	if req.Quantity <= 0 {
		return "", model.ErrInvalidQuantity
	}
	if len(req.Reason) > maxReasonLength {
		return "", model.ErrInvalidInput.WithMessage("reason must be at most %d characters", maxReasonLength)
	}

	status := req.InitialStatus
	if status == "" {
		status = model.RefundStatusOpen
	}
	switch status {
	case model.RefundStatusOpen, model.RefundStatusProcessing, model.RefundStatusApproved:
		return status, nil
	default:
		return "", model.ErrInvalidInput.WithMessage("refund cannot be filed as %s", status)
	}
}
