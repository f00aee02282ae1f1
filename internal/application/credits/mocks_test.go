package credits

import (
	"context"

	domaincredits "github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domaincredits.Account, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domaincredits.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) Deduct(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Add(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

// MockPurchaseRepository is a mock implementation of PurchaseRepository
type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, purchase *domaincredits.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockPurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*domaincredits.Purchase, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaincredits.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domaincredits.Purchase, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domaincredits.Purchase), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseRepository) Settle(ctx context.Context, sessionID string) (*domaincredits.SettlementResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaincredits.SettlementResult), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domaincredits.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domaincredits.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domaincredits.Transaction), args.Get(1).(int64), args.Error(2)
}

// MockCheckoutGateway is a mock implementation of CheckoutGateway
type MockCheckoutGateway struct {
	mock.Mock
}

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, userID uuid.UUID, pkg domaincredits.Package) (*billing.CheckoutSessionOutput, error) {
	args := m.Called(ctx, userID, pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSessionOutput), args.Error(1)
}

func (m *MockCheckoutGateway) RetrieveSession(ctx context.Context, sessionID string) (*billing.SessionPaymentStatus, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SessionPaymentStatus), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
