package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
)

// --- Mock repositories ---

type mockCustomerRepository struct{ mock.Mock }

func (m *mockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *mockCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *mockCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	return m.Called(ctx, c).Error(0)
}

type mockAddressRepository struct{ mock.Mock }

func (m *mockAddressRepository) Create(ctx context.Context, a *domain.Address) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAddressRepository) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

type mockVariantRepository struct{ mock.Mock }

func (m *mockVariantRepository) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

func (m *mockVariantRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Variant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Variant), args.Error(1)
}

func (m *mockVariantRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error) {
	args := m.Called(ctx, id, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

type mockShippingMethodRepository struct{ mock.Mock }

func (m *mockShippingMethodRepository) GetByID(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShippingMethod), args.Error(1)
}

type mockOrderRepository struct{ mock.Mock }

func (m *mockOrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) Search(ctx context.Context, f repository.SearchFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, target domain.OrderState, guard repository.TransitionGuard) (*domain.StatusChange, error) {
	args := m.Called(ctx, id, target, guard)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

// --- Mock collaborators ---

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, c *domain.StatusChange) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockPublisher) PublishOrderCanceled(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Name() string { return "mock-gateway" }

func (m *mockGateway) Initialize(ctx context.Context, req *payment.InitializeRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *mockGateway) Verify(ctx context.Context, reference string) (*payment.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Verification), args.Error(1)
}

type mocks struct {
	customers *mockCustomerRepository
	addresses *mockAddressRepository
	variants  *mockVariantRepository
	shipping  *mockShippingMethodRepository
	orders    *mockOrderRepository
	events    *mockPublisher
}

func newMockedService(opts Options) (*OrderService, *mocks) {
	m := &mocks{
		customers: new(mockCustomerRepository),
		addresses: new(mockAddressRepository),
		variants:  new(mockVariantRepository),
		shipping:  new(mockShippingMethodRepository),
		orders:    new(mockOrderRepository),
		events:    new(mockPublisher),
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 4
	}
	svc := NewOrderService(Repositories{
		Customers:       m.customers,
		Addresses:       m.addresses,
		Variants:        m.variants,
		ShippingMethods: m.shipping,
		Orders:          m.orders,
	}, m.events, opts, discardLogger())
	return svc, m
}

func (m *mocks) assertAll(t mock.TestingT) {
	m.customers.AssertExpectations(t)
	m.addresses.AssertExpectations(t)
	m.variants.AssertExpectations(t)
	m.shipping.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

func strPtr(s string) *string {
	return &s
}
