package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/analytics"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/service"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/health"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/httputil"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/pagination"
)

const (
	orderID   = "550e8400-e29b-41d4-a716-446655440001"
	customer  = "550e8400-e29b-41d4-a716-446655440002"
	addressID = "550e8400-e29b-41d4-a716-446655440003"
	variantID = "550e8400-e29b-41d4-a716-446655440021"
)

// --- Mocks ---

type mockEngine struct{ mock.Mock }

func (m *mockEngine) CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockEngine) UpdateOrderStatus(ctx context.Context, id, state string) (*domain.Order, error) {
	args := m.Called(ctx, id, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockEngine) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockEngine) ListOrders(ctx context.Context, input service.ListOrdersInput) ([]domain.Order, int, error) {
	args := m.Called(ctx, input)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockEngine) SearchOrders(ctx context.Context, term string, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, term, page)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockEngine) UpdateVariantPrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error) {
	args := m.Called(ctx, id, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variant), args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) InitializePayment(ctx context.Context, id string) (*service.PaymentInitialization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentInitialization), args.Error(1)
}

func (m *mockPayments) VerifyPayment(ctx context.Context, id string) (*domain.Order, *payment.Verification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Get(1).(*payment.Verification), args.Error(2)
}

type mockAnalytics struct{ mock.Mock }

func (m *mockAnalytics) Summary(ctx context.Context, top int) (*analytics.Summary, error) {
	args := m.Called(ctx, top)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Summary), args.Error(1)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	engine   *mockEngine
	payments *mockPayments
	reader   *mockAnalytics
	router   http.Handler
}

func newFixture(t *testing.T, withAnalytics bool) *fixture {
	t.Helper()
	f := &fixture{engine: new(mockEngine), payments: new(mockPayments), reader: new(mockAnalytics)}

	var reader AnalyticsReader
	if withAnalytics {
		reader = f.reader
	}
	h := NewOrderHandler(f.engine, f.payments, reader, testLogger())
	f.router = NewRouter(h, health.NewHandler(), testLogger(), RouterConfig{})

	t.Cleanup(func() {
		f.engine.AssertExpectations(t)
		f.payments.AssertExpectations(t)
		f.reader.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func sampleOrder() *domain.Order {
	now := time.Now().UTC()
	o := &domain.Order{
		ID:                orderID,
		Code:              "261018101500ABCDEF",
		CustomerID:        customer,
		State:             domain.StateCreated,
		Shipping:          500,
		Currency:          "USD",
		ShippingAddressID: addressID,
		BillingAddressID:  addressID,
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: orderID, VariantID: variantID, SKU: "TSH-BLK-M", Quantity: 2, UnitPrice: 1999, LinePrice: 3998},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.ComputeTotals()
	return o
}

func guestBody() map[string]any {
	return map[string]any{
		"new_customer": map[string]any{
			"email":      "guest@example.com",
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"shipping_address": map[string]any{
				"full_name":     "Ada Lovelace",
				"street_line_1": "1 Main St",
				"city":          "Nairobi",
				"postal_code":   "00100",
				"country_code":  "ke",
			},
		},
		"lines":         []map[string]any{{"variant_id": variantID, "quantity": 2}},
		"shipping_cost": 500,
		"currency":      "usd",
	}
}

// ============================================================================
// POST /api/v1/orders
// ============================================================================

func TestCreateOrder_GuestCheckout(t *testing.T) {
	f := newFixture(t, false)

	f.engine.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in service.CreateOrderInput) bool {
		nc, ok := in.Checkout.(domain.NewCustomerCheckout)
		return ok && nc.Email == "guest@example.com" && nc.Password == nil &&
			nc.ShippingAddress.CountryCode == "ke" &&
			len(in.Lines) == 1 && in.Lines[0].Quantity == 2 &&
			in.ShippingCost == 500 && in.Currency == "USD"
	})).Return(sampleOrder(), nil)

	rec := f.do(http.MethodPost, "/api/v1/orders", guestBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, orderID, data["id"])
	assert.Equal(t, float64(4498), data["total"])
}

func TestCreateOrder_ExistingCustomer(t *testing.T) {
	f := newFixture(t, false)

	f.engine.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in service.CreateOrderInput) bool {
		ec, ok := in.Checkout.(domain.ExistingCustomerCheckout)
		return ok && ec.CustomerID == customer && ec.BillingAddressID == nil
	})).Return(sampleOrder(), nil)

	rec := f.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"existing_customer": map[string]any{"customer_id": customer, "shipping_address_id": addressID},
		"lines":             []map[string]any{{"variant_id": variantID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  func() map[string]any
		field string
	}{
		{
			name:  "no checkout",
			body:  func() map[string]any { b := guestBody(); delete(b, "new_customer"); return b },
			field: "existing_customer",
		},
		{
			name: "both checkouts",
			body: func() map[string]any {
				b := guestBody()
				b["existing_customer"] = map[string]any{"customer_id": customer, "shipping_address_id": addressID}
				return b
			},
			field: "existing_customer",
		},
		{
			name:  "no lines",
			body:  func() map[string]any { b := guestBody(); b["lines"] = []any{}; return b },
			field: "lines",
		},
		{
			name: "zero quantity",
			body: func() map[string]any {
				b := guestBody()
				b["lines"] = []map[string]any{{"variant_id": variantID, "quantity": 0}}
				return b
			},
			field: "lines[0].quantity",
		},
		{
			name: "variant id not a uuid",
			body: func() map[string]any {
				b := guestBody()
				b["lines"] = []map[string]any{{"variant_id": "nope", "quantity": 1}}
				return b
			},
			field: "lines[0].variant_id",
		},
		{
			name:  "negative tax",
			body:  func() map[string]any { b := guestBody(); b["tax"] = -1; return b },
			field: "tax",
		},
		{
			name: "bad email",
			body: func() map[string]any {
				b := guestBody()
				b["new_customer"].(map[string]any)["email"] = "not-an-email"
				return b
			},
			field: "new_customer.email",
		},
		{
			name: "country code length",
			body: func() map[string]any {
				b := guestBody()
				nc := b["new_customer"].(map[string]any)
				nc["shipping_address"].(map[string]any)["country_code"] = "KEN"
				return b
			},
			field: "new_customer.shipping_address.country_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)

			rec := f.do(http.MethodPost, "/api/v1/orders", tt.body())

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
			assert.Contains(t, resp.Error.Fields, tt.field)
		})
	}
}

func TestCreateOrder_UnknownField(t *testing.T) {
	f := newFixture(t, false)

	b := guestBody()
	b["coupon"] = "FREE"
	rec := f.do(http.MethodPost, "/api/v1/orders", b)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decodeResponse(t, rec).Error.Code)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, apperrors.InsufficientStock("TSH-BLK-M", 1, 2))

	rec := f.do(http.MethodPost, "/api/v1/orders", guestBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, apperrors.CodeInsufficientStock, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "TSH-BLK-M")
}

// ============================================================================
// Reads
// ============================================================================

func TestGetOrder(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("GetOrder", mock.Anything, orderID).Return(sampleOrder(), nil)

	rec := f.do(http.MethodGet, "/api/v1/orders/"+orderID, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrder_InvalidUUID(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeResponse(t, rec).Error.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("GetOrder", mock.Anything, orderID).Return(nil, apperrors.NotFound("order", orderID))

	rec := f.do(http.MethodGet, "/api/v1/orders/"+orderID, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeResponse(t, rec).Error.Code)
}

func TestListOrders_FiltersAndPaging(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("ListOrders", mock.Anything, mock.MatchedBy(func(in service.ListOrdersInput) bool {
		return in.State == "CANCELLED" && in.CustomerID == customer &&
			in.Sort.Field == "total" && in.Page.Page == 2 && in.Page.PerPage == 5
	})).Return([]domain.Order{*sampleOrder()}, 6, nil)

	rec := f.do(http.MethodGet, "/api/v1/orders?state=CANCELLED&customer_id="+customer+"&sort=total&page=2&per_page=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var result pagination.Result[domain.Order]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 6, result.TotalCount)
	assert.Equal(t, 2, result.TotalPages)
}

func TestListOrders_InvalidCustomerID(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/v1/orders?customer_id=abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchOrders(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("SearchOrders", mock.Anything, "ada@", mock.Anything).
		Return([]domain.Order{}, 0, nil)

	rec := f.do(http.MethodGet, "/api/v1/orders/search?q=ada@", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Writes
// ============================================================================

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, false)
	cancelled := sampleOrder()
	cancelled.State = domain.StateCancelled
	f.engine.On("UpdateOrderStatus", mock.Anything, orderID, "CANCELLED").Return(cancelled, nil)

	rec := f.do(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", map[string]string{"state": "CANCELLED"})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, "CANCELLED", data["state"])
}

func TestUpdateOrderStatus_MissingState(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatus_InvalidState(t *testing.T) {
	f := newFixture(t, false)
	f.engine.On("UpdateOrderStatus", mock.Anything, orderID, "LOST").
		Return(nil, apperrors.InvalidInput("unknown order state LOST"))

	rec := f.do(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", map[string]string{"state": "LOST"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateVariantPrice(t *testing.T) {
	f := newFixture(t, false)
	price := decimal.RequireFromString("24.50")
	f.engine.On("UpdateVariantPrice", mock.Anything, variantID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(price)
	})).Return(&domain.Variant{ID: variantID, SKU: "TSH-BLK-M", Price: price, Enabled: true}, nil)

	rec := f.do(http.MethodPut, "/api/v1/variants/"+variantID+"/price", `{"price":"24.50"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateVariantPrice_MalformedPrice(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPut, "/api/v1/variants/"+variantID+"/price", `{"price":"cheap"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Payments
// ============================================================================

func TestInitializePayment(t *testing.T) {
	f := newFixture(t, false)
	pending := sampleOrder()
	pending.State = domain.StatePaymentPending
	f.payments.On("InitializePayment", mock.Anything, orderID).Return(&service.PaymentInitialization{
		Order:   pending,
		Session: &payment.Session{AuthorizationURL: "https://pay.example.com/abc", Reference: pending.Code},
	}, nil)

	rec := f.do(http.MethodPost, "/api/v1/orders/"+orderID+"/payments", nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInitializePayment_GatewayDown(t *testing.T) {
	f := newFixture(t, false)
	f.payments.On("InitializePayment", mock.Anything, orderID).
		Return(nil, apperrors.ExternalService("payment gateway", "timeout"))

	rec := f.do(http.MethodPost, "/api/v1/orders/"+orderID+"/payments", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t, false)
	settled := sampleOrder()
	settled.State = domain.StatePaymentSettled
	f.payments.On("VerifyPayment", mock.Anything, orderID).Return(settled, &payment.Verification{
		Reference: settled.Code, Status: payment.StatusSuccess, Amount: settled.Total, Currency: "USD",
	}, nil)

	rec := f.do(http.MethodPost, "/api/v1/orders/"+orderID+"/payments/verify", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, "PAYMENT_SETTLED", data["order"].(map[string]any)["state"])
}

// ============================================================================
// Analytics and operational endpoints
// ============================================================================

func TestAnalyticsSummary_Disabled(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/v1/analytics/summary", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyticsSummary(t *testing.T) {
	f := newFixture(t, true)
	f.reader.On("Summary", mock.Anything, 3).Return(&analytics.Summary{
		OrderCount: 2,
		Revenue:    map[string]int64{"USD": 4498},
		TopSellers: []analytics.TopSeller{{SKU: "TSH-BLK-M", Units: 2}},
	}, nil)

	rec := f.do(http.MethodGet, "/api/v1/analytics/summary?top=3", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyticsSummary_BadTop(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/api/v1/analytics/summary?top=0", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthLive(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/health/live", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimitsOrderCreation(t *testing.T) {
	engine := new(mockEngine)
	engine.On("CreateOrder", mock.Anything, mock.Anything).Return(sampleOrder(), nil).Once()
	h := NewOrderHandler(engine, new(mockPayments), nil, testLogger())
	router := NewRouter(h, health.NewHandler(), testLogger(), RouterConfig{WriteRateLimitRPS: 0.001, WriteRateLimitBurst: 1})

	post := func() int {
		body, _ := json.Marshal(guestBody())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/search?q=x", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	engine.On("SearchOrders", mock.Anything, "x", mock.Anything).Return([]domain.Order{}, 0, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
	engine.AssertExpectations(t)
}
