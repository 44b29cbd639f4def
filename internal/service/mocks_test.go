package service

import (
	"context"
	"sync"
	"time"

	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context, filter model.CatalogFilter) ([]model.CatalogEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CatalogEntry), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) PricesForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]int64, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockProductRepository) FindByName(ctx context.Context, name string) (*model.ResolvedProduct, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResolvedProduct), args.Error(1)
}

// MockStockRepository is a mock implementation of StockRepository.
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStockRepository) Available(ctx context.Context, productID string) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockStockRepository) ReserveAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockStockRepository) ReleaseAll(ctx context.Context, tx pgx.Tx, items []model.StockItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

// MockMembershipRepository is a mock implementation of MembershipRepository.
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) TierOf(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) List(ctx context.Context, userID string) ([]model.CartLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartLine), args.Error(1)
}

func (m *MockCartRepository) Quantity(ctx context.Context, userID, productID string) (int, error) {
	args := m.Called(ctx, userID, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockCartRepository) AddWithinLimit(ctx context.Context, userID, productID string, qty int, unitPrice int64, limit int) (int, bool, error) {
	args := m.Called(ctx, userID, productID, qty, unitPrice, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockCartRepository) Set(ctx context.Context, userID, productID string, qty int, unitPrice int64) error {
	args := m.Called(ctx, userID, productID, qty, unitPrice)
	return args.Error(0)
}

func (m *MockCartRepository) Remove(ctx context.Context, userID, productID string) (bool, error) {
	args := m.Called(ctx, userID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) Clear(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartRepository) LockLines(ctx context.Context, tx pgx.Tx, userID string) ([]model.CartLine, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartLine), args.Error(1)
}

func (m *MockCartRepository) DeleteLines(ctx context.Context, tx pgx.Tx, userID string, productIDs []string) error {
	args := m.Called(ctx, tx, userID, productIDs)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error {
	args := m.Called(ctx, tx, lines)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Order), args.Get(1).([]model.OrderLine), args.Error(2)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) LockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, []model.OrderLine, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Order), args.Get(1).([]model.OrderLine), args.Error(2)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, tx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ConfirmedBefore(ctx context.Context, t time.Time) ([]model.Order, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetLineDetail(ctx context.Context, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error) {
	args := m.Called(ctx, orderID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderLineDetail), args.Error(1)
}

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository.
type MockIdempotencyRepository struct {
	mock.Mock
}

func (m *MockIdempotencyRepository) Claim(ctx context.Context, tx pgx.Tx, claim model.CheckoutClaim) (*model.CheckoutClaim, bool, error) {
	args := m.Called(ctx, tx, claim)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.CheckoutClaim), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyRepository) AttachOrder(ctx context.Context, tx pgx.Tx, userID, key string, orderID uuid.UUID) error {
	args := m.Called(ctx, tx, userID, key, orderID)
	return args.Error(0)
}

func (m *MockIdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockRefundRepository is a mock implementation of RefundRepository.
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefundRepository) LockOrderLine(ctx context.Context, tx pgx.Tx, userID string, orderID uuid.UUID, productID string) (*model.OrderLineDetail, error) {
	args := m.Called(ctx, tx, userID, orderID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderLineDetail), args.Error(1)
}

func (m *MockRefundRepository) SumActive(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, productID string) (int, error) {
	args := m.Called(ctx, tx, orderID, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockRefundRepository) CountActiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *MockRefundRepository) Insert(ctx context.Context, tx pgx.Tx, ticket *model.RefundRequest) error {
	args := m.Called(ctx, tx, ticket)
	return args.Error(0)
}

func (m *MockRefundRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (*model.RefundRequest, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) LockByID(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*model.RefundRequest, error) {
	args := m.Called(ctx, tx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status model.RefundStatus) (*model.RefundRequest, error) {
	args := m.Called(ctx, tx, ticketID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) MarkRestocked(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, ticketID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRefundRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RefundRequest, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RefundRequest), args.Error(1)
}

// MockResolver is a mock implementation of ProductResolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveProduct(ctx context.Context, name string) (*model.ResolvedProduct, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResolvedProduct), args.Error(1)
}

// recordingEmitter captures emitted event types.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) Emit(_ context.Context, eventType, _ string, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

// recordingScheduler captures scheduled deliveries.
type recordingScheduler struct {
	mu     sync.Mutex
	orders []uuid.UUID
}

func (s *recordingScheduler) Schedule(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order.ID)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
