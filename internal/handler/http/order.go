package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/analytics"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/service"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/httputil"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/pagination"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/validator"
)

// OrderEngine is the order surface the handlers call.
type OrderEngine interface {
	CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id, state string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, input service.ListOrdersInput) ([]domain.Order, int, error)
	SearchOrders(ctx context.Context, term string, page pagination.Params) ([]domain.Order, int, error)
	UpdateVariantPrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error)
}

// Payments starts and confirms order payments.
type Payments interface {
	InitializePayment(ctx context.Context, orderID string) (*service.PaymentInitialization, error)
	VerifyPayment(ctx context.Context, orderID string) (*domain.Order, *payment.Verification, error)
}

// AnalyticsReader serves the analytics read model.
type AnalyticsReader interface {
	Summary(ctx context.Context, top int) (*analytics.Summary, error)
}

// OrderHandler handles HTTP requests for the order engine.
type OrderHandler struct {
	orders    OrderEngine
	payments  Payments
	analytics AnalyticsReader
	logger    *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler. reader may be nil when
// analytics is disabled.
func NewOrderHandler(orders OrderEngine, payments Payments, reader AnalyticsReader, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments, analytics: reader, logger: logger}
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()

	if id := q.Get("customer_id"); id != "" {
		if _, ok := httputil.ParseUUID(w, id); !ok {
			return
		}
	}

	orders, total, err := h.orders.ListOrders(r.Context(), service.ListOrdersInput{
		State:      q.Get("state"),
		CustomerID: q.Get("customer_id"),
		Sort:       pagination.SortFromRequest(r, repository.SortFields, repository.SortCreatedAt),
		Page:       page,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, page))
}

// SearchOrders handles GET /api/v1/orders/search
func (h *OrderHandler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	orders, total, err := h.orders.SearchOrders(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, page))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), id.String(), req.State)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// InitializePayment handles POST /api/v1/orders/{id}/payments
func (h *OrderHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.payments.InitializePayment(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, result)
}

// VerifyPayment handles POST /api/v1/orders/{id}/payments/verify
func (h *OrderHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, verification, err := h.payments.VerifyPayment(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]any{
		"order":        order,
		"verification": verification,
	})
}

// UpdateVariantPrice handles PUT /api/v1/variants/{id}/price
func (h *OrderHandler) UpdateVariantPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdatePriceRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	v, err := h.orders.UpdateVariantPrice(r.Context(), id.String(), req.Price)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// AnalyticsSummary handles GET /api/v1/analytics/summary
func (h *OrderHandler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		httputil.WriteError(w, r, apperrors.ServiceUnavailable("analytics is disabled"), h.logger)
		return
	}

	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			httputil.WriteError(w, r, apperrors.InvalidInput("top must be an integer between 1 and 100"), h.logger)
			return
		}
		top = n
	}

	summary, err := h.analytics.Summary(r.Context(), top)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}
