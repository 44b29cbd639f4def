package handler

import (
	"context"
	"net/http"

	"commerce-core/internal/intake"
	"commerce-core/internal/middleware"
	"commerce-core/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// withRoute attaches chi URL parameters and the user identity to req.
func withRoute(req *http.Request, user string, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if user != "" {
		ctx = middleware.WithUserID(ctx, user)
	}
	return req.WithContext(ctx)
}

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CatalogEntry), args.Error(1)
}

func (m *MockProductService) Get(ctx context.Context, productID string) (*model.CatalogEntry, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CatalogEntry), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) view(args mock.Arguments) (*model.CartView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartView), args.Error(1)
}

func (m *MockCartService) Add(ctx context.Context, userID, productID string, qty int) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID, productID, qty))
}

func (m *MockCartService) AddByName(ctx context.Context, userID, name string, qty int) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID, name, qty))
}

func (m *MockCartService) SetQuantity(ctx context.Context, userID, productID string, qty int) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID, productID, qty))
}

func (m *MockCartService) Remove(ctx context.Context, userID, productID string) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID, productID))
}

func (m *MockCartService) Clear(ctx context.Context, userID string) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID))
}

func (m *MockCartService) View(ctx context.Context, userID string) (*model.CartView, error) {
	return m.view(m.Called(ctx, userID))
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Get(ctx context.Context, userID string, id uuid.UUID) (*model.OrderResponse, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, userID string, id uuid.UUID) (*model.OrderResponse, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

// MockRefundService is a mock implementation of RefundService.
type MockRefundService struct {
	mock.Mock
}

func (m *MockRefundService) RequestRefund(ctx context.Context, req *model.RefundRequestInput) (*model.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundResult), args.Error(1)
}

func (m *MockRefundService) ticket(args mock.Arguments) (*model.RefundRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundService) UpdateStatus(ctx context.Context, ticketID uuid.UUID, status model.RefundStatus) (*model.RefundRequest, error) {
	return m.ticket(m.Called(ctx, ticketID, status))
}

func (m *MockRefundService) Restock(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error) {
	return m.ticket(m.Called(ctx, ticketID))
}

func (m *MockRefundService) Get(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error) {
	return m.ticket(m.Called(ctx, ticketID))
}

func (m *MockRefundService) ListForOrder(ctx context.Context, userID string, orderID uuid.UUID) ([]model.RefundRequest, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RefundRequest), args.Error(1)
}

// MockIntake is a mock implementation of IntakeProcessor.
type MockIntake struct {
	mock.Mock
}

func (m *MockIntake) Process(ctx context.Context, req *intake.Request) (*intake.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intake.Outcome), args.Error(1)
}

// MockStockService is a mock implementation of StockService.
type MockStockService struct {
	mock.Mock
}

func (m *MockStockService) PeekAvailable(ctx context.Context, productID string) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockStockService) ReserveAll(ctx context.Context, items []model.StockItem) error {
	return m.Called(ctx, items).Error(0)
}

func (m *MockStockService) ReleaseAll(ctx context.Context, items []model.StockItem) error {
	return m.Called(ctx, items).Error(0)
}
