package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

func newPaymentFixture(t *testing.T, gw payment.Gateway) (*PaymentService, *OrderService, *domain.Order) {
	t.Helper()
	orders, store := newEngine(t, Options{})
	order, err := orders.CreateOrder(context.Background(), CreateOrderInput{
		Checkout:     guestCheckout("payer@example.com"),
		Lines:        []LineInput{{VariantID: "var-x", Quantity: 2}},
		ShippingCost: 200,
		Tax:          50,
	})
	require.NoError(t, err)
	return NewPaymentService(store.Orders(), store.Customers(), gw, nil, discardLogger()), orders, order
}

func TestPayment_InitializeAndVerify(t *testing.T) {
	payments, _, order := newPaymentFixture(t, payment.NewMockGateway())
	ctx := context.Background()

	started, err := payments.InitializePayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Code, started.Session.Reference)
	assert.NotEmpty(t, started.Session.AuthorizationURL)
	assert.Equal(t, domain.StatePaymentPending, started.Order.State)

	settled, v, err := payments.VerifyPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, v.Successful())
	assert.Equal(t, int64(2250), v.Amount)
	assert.Equal(t, domain.StatePaymentSettled, settled.State)

	again, _, err := payments.VerifyPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaymentSettled, again.State)

	_, err = payments.InitializePayment(ctx, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPayment_InitializeSendsOrderTotal(t *testing.T) {
	gw := new(mockGateway)
	payments, _, order := newPaymentFixture(t, gw)

	gw.On("Initialize", mock.Anything, mock.MatchedBy(func(r *payment.InitializeRequest) bool {
		return r.OrderID == order.ID && r.Reference == order.Code && r.Amount == 2250 &&
			r.Email == "payer@example.com" && r.Currency == "USD"
	})).Return(&payment.Session{AuthorizationURL: "https://pay/x", AccessCode: "x", Reference: order.Code}, nil)

	_, err := payments.InitializePayment(context.Background(), order.ID)
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestPayment_GatewayErrorSurfacesAndLeavesOrder(t *testing.T) {
	gw := new(mockGateway)
	payments, orders, order := newPaymentFixture(t, gw)
	ctx := context.Background()

	gw.On("Initialize", mock.Anything, mock.Anything).
		Return(nil, apperrors.ExternalService("payment-gateway", "Invalid key"))

	_, err := payments.InitializePayment(ctx, order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Contains(t, err.Error(), "Invalid key")

	got, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, got.State)
}

func TestPayment_VerifyRequiresPendingPayment(t *testing.T) {
	gw := new(mockGateway)
	payments, _, order := newPaymentFixture(t, gw)
	gw.On("Verify", mock.Anything, order.Code).
		Return(&payment.Verification{Reference: order.Code, Status: payment.StatusSuccess, Amount: 2250}, nil)

	_, _, err := payments.VerifyPayment(context.Background(), order.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPayment_VerifyUnsuccessfulOrShortPayment(t *testing.T) {
	gw := new(mockGateway)
	payments, orders, order := newPaymentFixture(t, gw)
	ctx := context.Background()

	_, err := orders.UpdateOrderStatus(ctx, order.ID, "PAYMENT_PENDING")
	require.NoError(t, err)

	gw.On("Verify", mock.Anything, order.Code).
		Return(&payment.Verification{Reference: order.Code, Status: payment.StatusAbandoned}, nil).Once()
	got, v, err := payments.VerifyPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, v.Successful())
	assert.Equal(t, domain.StatePaymentPending, got.State)

	gw.On("Verify", mock.Anything, order.Code).
		Return(&payment.Verification{Reference: order.Code, Status: payment.StatusSuccess, Amount: 100}, nil).Once()
	_, _, err = payments.VerifyPayment(ctx, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err = orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaymentPending, got.State)
}

func TestPayment_VerifyRejectsForeignCurrency(t *testing.T) {
	gw := new(mockGateway)
	payments, orders, order := newPaymentFixture(t, gw)
	ctx := context.Background()

	_, err := orders.UpdateOrderStatus(ctx, order.ID, "PAYMENT_PENDING")
	require.NoError(t, err)

	gw.On("Verify", mock.Anything, order.Code).Return(&payment.Verification{
		Reference: order.Code, Status: payment.StatusSuccess, Amount: order.Total, Currency: "NGN",
	}, nil)

	_, _, err = payments.VerifyPayment(ctx, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaymentPending, got.State)
}
