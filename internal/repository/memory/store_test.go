package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.PutVariant(domain.Variant{ID: "var-a", SKU: "SKU-A", Price: decimal.NewFromInt(10), StockOnHand: 5, Enabled: true})
	s.PutVariant(domain.Variant{ID: "var-b", SKU: "SKU-B", Price: decimal.NewFromInt(20), StockOnHand: 1, Enabled: true})
	return s
}

func order(id, code string, lines ...domain.OrderLine) *domain.Order {
	now := time.Now().UTC()
	o := &domain.Order{ID: id, Code: code, CustomerID: "cus-1", State: domain.StateCreated, Lines: lines, CreatedAt: now, UpdatedAt: now}
	o.ComputeTotals()
	return o
}

func stock(t *testing.T, s *Store, id string) int {
	t.Helper()
	v, err := s.Variants().GetByID(context.Background(), id)
	require.NoError(t, err)
	return v.StockOnHand
}

func TestCreate_FailureLeavesNoTrace(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.Orders().Create(ctx, order("o1", "C1",
		domain.OrderLine{VariantID: "var-a", SKU: "SKU-A", Quantity: 2},
		domain.OrderLine{VariantID: "var-b", SKU: "SKU-B", Quantity: 2},
	))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInsufficientStock, apperrors.Code(err))

	assert.Equal(t, 5, stock(t, s, "var-a"))
	assert.Equal(t, 1, stock(t, s, "var-b"))
	assert.Zero(t, s.OrderCount())
	assert.Empty(t, s.Movements())
	exists, _ := s.Orders().CodeExists(ctx, "C1")
	assert.False(t, exists)
}

func TestCreate_DuplicateCode(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Orders().Create(ctx, order("o1", "C1", domain.OrderLine{VariantID: "var-a", Quantity: 1})))
	err := s.Orders().Create(ctx, order("o2", "C1", domain.OrderLine{VariantID: "var-a", Quantity: 1}))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 4, stock(t, s, "var-a"))
}

func TestUpdateStatus_CancelRestoresOnce(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Orders().Create(ctx, order("o1", "C1", domain.OrderLine{VariantID: "var-a", Quantity: 3})))
	assert.Equal(t, 2, stock(t, s, "var-a"))

	change, err := s.Orders().UpdateStatus(ctx, "o1", domain.StateCancelled, nil)
	require.NoError(t, err)
	assert.True(t, change.StockRestored)
	assert.Equal(t, 5, stock(t, s, "var-a"))

	change, err = s.Orders().UpdateStatus(ctx, "o1", domain.StateCancelled, nil)
	require.NoError(t, err)
	assert.False(t, change.StockRestored)
	assert.Equal(t, domain.StateCancelled, change.Previous)
	assert.Equal(t, 5, stock(t, s, "var-a"))
	assert.Len(t, s.Movements(), 2)
}

func TestUpdateStatus_TerminalStateIsFinal(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Orders().Create(ctx, order("o1", "C1", domain.OrderLine{VariantID: "var-a", Quantity: 3})))
	_, err := s.Orders().UpdateStatus(ctx, "o1", domain.StateCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, stock(t, s, "var-a"))

	_, err = s.Orders().UpdateStatus(ctx, "o1", domain.StateCreated, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	change, err := s.Orders().UpdateStatus(ctx, "o1", domain.StateCancelled, nil)
	require.NoError(t, err)
	assert.False(t, change.StockRestored)
	assert.Equal(t, 5, stock(t, s, "var-a"))

	got, err := s.Orders().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, got.State)
}

func TestListAndSearch(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	s.PutCustomer(domain.Customer{ID: "cus-1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"})

	o1 := order("o1", "AAA1", domain.OrderLine{VariantID: "var-a", Quantity: 1, UnitPrice: 1000, LinePrice: 1000})
	o2 := order("o2", "BBB2", domain.OrderLine{VariantID: "var-a", Quantity: 2, UnitPrice: 1000, LinePrice: 2000})
	o2.CreatedAt = o1.CreatedAt.Add(time.Second)
	require.NoError(t, s.Orders().Create(ctx, o1))
	require.NoError(t, s.Orders().Create(ctx, o2))

	orders, total, err := s.Orders().List(ctx, repository.OrderFilter{SortField: repository.SortTotal, SortDesc: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "o2", orders[0].ID)

	found, total, err := s.Orders().Search(ctx, repository.SearchFilter{Term: "LOVE", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "o2", found[0].ID)

	found, _, err = s.Orders().Search(ctx, repository.SearchFilter{Term: "aaa", Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "o1", found[0].ID)
}

func TestCustomerCreate_EmailIsCaseInsensitive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Customers().Create(ctx, &domain.Customer{ID: "c1", Email: "New@X.com"}))
	err := s.Customers().Create(ctx, &domain.Customer{ID: "c2", Email: "new@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	c, err := s.Customers().GetByEmail(ctx, "NEW@x.COM")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}
