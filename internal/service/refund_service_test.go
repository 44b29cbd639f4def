package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"commerce-core/internal/events"
	"commerce-core/internal/metrics"
	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type refundFixture struct {
	refunds *MockRefundRepository
	orders  *MockOrderRepository
	stock   *MockStockRepository
	emitter *recordingEmitter
	metrics *metrics.Metrics
	tx      *MockTx
	service RefundService
}

func newRefundFixture() *refundFixture {
	f := &refundFixture{
		refunds: new(MockRefundRepository),
		orders:  new(MockOrderRepository),
		stock:   new(MockStockRepository),
		emitter: &recordingEmitter{},
		metrics: metrics.New(),
		tx:      new(MockTx),
	}
	f.service = NewRefundService(f.refunds, f.orders, f.stock, f.emitter, f.metrics, 5*time.Second, zerolog.Nop())
	return f
}

func orderLine(orderID uuid.UUID, productID string, qty int, status model.OrderStatus) *model.OrderLineDetail {
	return &model.OrderLineDetail{
		OrderLine:   model.OrderLine{OrderID: orderID, ProductID: productID, Quantity: qty, UnitPrice: 10000, LinePrice: int64(qty) * 10000},
		UserID:      "u1",
		ProductName: "Widget",
		OrderStatus: status,
	}
}

func TestRefundService_RequestRefund_Decisions(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	tests := []struct {
		name         string
		ordered      int
		active       int
		requested    int
		decision     model.RefundDecision
		finalQty     int
		expectTicket bool
	}{
		{name: "Accepted in full", ordered: 2, active: 0, requested: 2, decision: model.RefundAccepted, finalQty: 2, expectTicket: true},
		{name: "Capped to remaining", ordered: 2, active: 0, requested: 3, decision: model.RefundCapped, finalQty: 2, expectTicket: true},
		{name: "Capped after earlier refund", ordered: 5, active: 4, requested: 3, decision: model.RefundCapped, finalQty: 1, expectTicket: true},
		{name: "Nothing left", ordered: 2, active: 2, requested: 1, decision: model.RefundNothingToRefund, finalQty: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()
			f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.refunds.On("LockOrderLine", mock.Anything, f.tx, "u1", orderID, "A").
				Return(orderLine(orderID, "A", tt.ordered, model.OrderStatusConfirmed), nil)
			f.refunds.On("SumActive", mock.Anything, f.tx, orderID, "A").Return(tt.active, nil)
			if tt.expectTicket {
				f.refunds.On("Insert", mock.Anything, f.tx, mock.MatchedBy(func(r *model.RefundRequest) bool {
					return r.RequestQty == tt.finalQty && r.Status == model.RefundStatusOpen && r.Reason == "broken"
				})).Return(nil)
			}
			f.tx.On("Commit", mock.Anything).Return(nil)

			result, err := f.service.RequestRefund(ctx, &model.RefundRequestInput{
				UserID:    "u1",
				OrderID:   orderID,
				ProductID: "A",
				Quantity:  tt.requested,
				Reason:    "  broken ",
			})

			require.NoError(t, err)
			assert.Equal(t, tt.decision, result.Decision)
			assert.Equal(t, tt.finalQty, result.FinalQty)
			assert.Equal(t, tt.requested, result.RequestedQty)
			assert.Equal(t, tt.ordered-tt.active, result.Remaining)
			assert.True(t, f.tx.committed)
			if tt.expectTicket {
				require.NotNil(t, result.Ticket)
				assert.Equal(t, []string{events.RefundRequested}, f.emitter.types())
			} else {
				assert.Nil(t, result.Ticket)
				assert.Empty(t, f.emitter.types())
				f.refunds.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefundRequests.WithLabelValues(string(tt.decision))))
			f.stock.AssertNotCalled(t, "ReleaseAll", mock.Anything, mock.Anything, mock.Anything)
			f.refunds.AssertExpectations(t)
		})
	}
}

func TestRefundService_RequestRefund_Validation(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name     string
		input    *model.RefundRequestInput
		expected error
	}{
		{name: "Nil request", input: nil, expected: model.ErrInvalidInput},
		{name: "Missing user", input: &model.RefundRequestInput{OrderID: orderID, ProductID: "A", Quantity: 1}, expected: model.ErrMissingUser},
		{name: "Missing order", input: &model.RefundRequestInput{UserID: "u1", ProductID: "A", Quantity: 1}, expected: model.ErrInvalidInput},
		{name: "Missing product", input: &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: " ", Quantity: 1}, expected: model.ErrInvalidInput},
		{name: "Zero quantity", input: &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A"}, expected: model.ErrInvalidQuantity},
		{name: "Negative quantity", input: &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: -2}, expected: model.ErrInvalidQuantity},
		{name: "Reason too long", input: &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: 1, Reason: strings.Repeat("x", 1001)}, expected: model.ErrInvalidInput},
		{name: "Terminal initial status", input: &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: 1, InitialStatus: model.RefundStatusRefunded}, expected: model.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()

			result, err := f.service.RequestRefund(context.Background(), tt.input)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.expected)
			f.refunds.AssertNotCalled(t, "BeginTx", mock.Anything)
		})
	}
}

func TestRefundService_RequestRefund_LineErrors(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	tests := []struct {
		name     string
		line     *model.OrderLineDetail
		expected error
	}{
		{name: "Line not in order", line: nil, expected: model.ErrOrderLineNotFound},
		{name: "Cancelled order", line: orderLine(orderID, "A", 2, model.OrderStatusCancelled), expected: model.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()
			f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.refunds.On("LockOrderLine", mock.Anything, f.tx, "u1", orderID, "A").Return(tt.line, nil)
			f.tx.On("Rollback", mock.Anything).Return(nil)

			_, err := f.service.RequestRefund(ctx, &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: 1})

			assert.ErrorIs(t, err, tt.expected)
			assert.True(t, f.tx.rolledBack)
			f.refunds.AssertNotCalled(t, "SumActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRefundService_RequestRefund_IntegrityViolation(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture()
	orderID := uuid.New()

	f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.refunds.On("LockOrderLine", mock.Anything, f.tx, "u1", orderID, "A").
		Return(orderLine(orderID, "A", 2, model.OrderStatusConfirmed), nil)
	f.refunds.On("SumActive", mock.Anything, f.tx, orderID, "A").Return(0, nil)
	f.refunds.On("Insert", mock.Anything, f.tx, mock.Anything).Return(model.ErrIntegrityViolation)
	f.tx.On("Rollback", mock.Anything).Return(nil)

	_, err := f.service.RequestRefund(ctx, &model.RefundRequestInput{UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: 1})

	assert.ErrorIs(t, err, model.ErrIntegrityViolation)
	assert.True(t, f.tx.rolledBack)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefundRequests.WithLabelValues("integrity_violation")))
}

func TestRefundService_RequestRefund_InitialStatusApproved(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture()
	orderID := uuid.New()

	f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.refunds.On("LockOrderLine", mock.Anything, f.tx, "u1", orderID, "A").
		Return(orderLine(orderID, "A", 1, model.OrderStatusDelivered), nil)
	f.refunds.On("SumActive", mock.Anything, f.tx, orderID, "A").Return(0, nil)
	f.refunds.On("Insert", mock.Anything, f.tx, mock.MatchedBy(func(r *model.RefundRequest) bool {
		return r.Status == model.RefundStatusApproved
	})).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)

	result, err := f.service.RequestRefund(ctx, &model.RefundRequestInput{
		UserID: "u1", OrderID: orderID, ProductID: "A", Quantity: 1, InitialStatus: model.RefundStatusApproved,
	})

	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusApproved, result.Ticket.Status)
	f.refunds.AssertExpectations(t)
}

func TestRefundService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	ticketID := uuid.New()
	restocked := time.Now()

	tests := []struct {
		name        string
		current     *model.RefundRequest
		next        model.RefundStatus
		expectWrite bool
		expectError error
	}{
		{
			name:        "Open to approved",
			current:     &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusOpen},
			next:        model.RefundStatusApproved,
			expectWrite: true,
		},
		{
			name:        "Approved to canceled",
			current:     &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusApproved},
			next:        model.RefundStatusCanceled,
			expectWrite: true,
		},
		{
			name:    "Same status is a no-op",
			current: &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusProcessing},
			next:    model.RefundStatusProcessing,
		},
		{
			name:        "Terminal status cannot move",
			current:     &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusRejected},
			next:        model.RefundStatusOpen,
			expectError: model.ErrInvalidTransition,
		},
		{
			name:        "Refunded cannot go back",
			current:     &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusRefunded},
			next:        model.RefundStatusApproved,
			expectError: model.ErrInvalidTransition,
		},
		{
			name:        "Restocked ticket cannot be canceled",
			current:     &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusApproved, RestockedAt: &restocked},
			next:        model.RefundStatusCanceled,
			expectError: model.ErrInvalidTransition,
		},
		{
			name:        "Unknown ticket",
			current:     nil,
			next:        model.RefundStatusApproved,
			expectError: model.ErrTicketNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()
			f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.refunds.On("LockByID", mock.Anything, f.tx, ticketID).Return(tt.current, nil)
			if tt.expectWrite {
				updated := *tt.current
				updated.Status = tt.next
				f.refunds.On("UpdateStatus", mock.Anything, f.tx, ticketID, tt.next).Return(&updated, nil)
			}
			if tt.expectError != nil {
				f.tx.On("Rollback", mock.Anything).Return(nil)
			} else {
				f.tx.On("Commit", mock.Anything).Return(nil)
			}

			ticket, err := f.service.UpdateStatus(ctx, ticketID, tt.next)

			if tt.expectError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectError)
				assert.True(t, f.tx.rolledBack)
				assert.Empty(t, f.emitter.types())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, ticket.Status)
			if tt.expectWrite {
				assert.Equal(t, []string{events.RefundStatusChanged}, f.emitter.types())
			} else {
				assert.Empty(t, f.emitter.types())
				f.refunds.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			f.refunds.AssertExpectations(t)
		})
	}
}

func TestRefundService_UpdateStatus_UnknownStatus(t *testing.T) {
	f := newRefundFixture()

	_, err := f.service.UpdateStatus(context.Background(), uuid.New(), model.RefundStatus("lost"))

	assert.ErrorIs(t, err, model.ErrInvalidInput)
	f.refunds.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestRefundService_Restock(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture()
	ticketID := uuid.New()

	ticket := &model.RefundRequest{TicketID: ticketID, ProductID: "A", RequestQty: 2, Status: model.RefundStatusApproved}

	f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
	f.refunds.On("LockByID", mock.Anything, f.tx, ticketID).Return(ticket, nil)
	f.refunds.On("MarkRestocked", mock.Anything, f.tx, ticketID).Return(true, nil)
	f.stock.On("ReleaseAll", mock.Anything, f.tx, []model.StockItem{{ProductID: "A", Quantity: 2}}).Return(nil)
	f.tx.On("Commit", mock.Anything).Return(nil)

	got, err := f.service.Restock(ctx, ticketID)

	require.NoError(t, err)
	require.NotNil(t, got.RestockedAt)
	assert.True(t, f.tx.committed)
	f.refunds.AssertExpectations(t)
	f.stock.AssertExpectations(t)
}

func TestRefundService_Restock_Rejected(t *testing.T) {
	ctx := context.Background()
	ticketID := uuid.New()
	restocked := time.Now()

	tests := []struct {
		name        string
		ticket      *model.RefundRequest
		marked      bool
		expectError error
	}{
		{
			name:        "Open ticket",
			ticket:      &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusOpen, ProductID: "A", RequestQty: 1},
			expectError: model.ErrInvalidTransition,
		},
		{
			name:        "Already restocked",
			ticket:      &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusRefunded, ProductID: "A", RequestQty: 1, RestockedAt: &restocked},
			expectError: model.ErrAlreadyRestocked,
		},
		{
			name:        "Lost the mark race",
			ticket:      &model.RefundRequest{TicketID: ticketID, Status: model.RefundStatusApproved, ProductID: "A", RequestQty: 1},
			marked:      false,
			expectError: model.ErrAlreadyRestocked,
		},
		{
			name:        "Unknown ticket",
			ticket:      nil,
			expectError: model.ErrTicketNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefundFixture()
			f.refunds.On("BeginTx", mock.Anything).Return(f.tx, nil)
			f.refunds.On("LockByID", mock.Anything, f.tx, ticketID).Return(tt.ticket, nil)
			f.refunds.On("MarkRestocked", mock.Anything, f.tx, ticketID).Return(tt.marked, nil).Maybe()
			f.tx.On("Rollback", mock.Anything).Return(nil)

			_, err := f.service.Restock(ctx, ticketID)

			assert.ErrorIs(t, err, tt.expectError)
			assert.True(t, f.tx.rolledBack)
			f.stock.AssertNotCalled(t, "ReleaseAll", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRefundService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture()
	ticketID := uuid.New()
	orderID := uuid.New()

	f.refunds.On("GetByID", ctx, ticketID).Return(&model.RefundRequest{TicketID: ticketID}, nil)
	f.refunds.On("GetByID", ctx, mock.Anything).Return(nil, nil)
	f.orders.On("GetByID", ctx, orderID).Return(&model.Order{ID: orderID, UserID: "u1"}, []model.OrderLine{}, nil)
	f.refunds.On("ListByOrder", ctx, orderID).Return([]model.RefundRequest{{TicketID: ticketID}}, nil)

	ticket, err := f.service.Get(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, ticketID, ticket.TicketID)

	_, err = f.service.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrTicketNotFound)

	tickets, err := f.service.ListForOrder(ctx, "u1", orderID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	_, err = f.service.ListForOrder(ctx, "u2", orderID)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}
