package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/logger"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/pagination"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/tracing"
)

const tracerName = "github.com/BrianNzangi/workit-ecommerce-sub003/internal/service"

// EventPublisher receives order lifecycle notifications after commit.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, change *domain.StatusChange) error
	PublishOrderCanceled(ctx context.Context, order *domain.Order) error
}

// Options tunes the order engine.
type Options struct {
	DefaultCurrency   string
	CodeMaxAttempts   int
	StrictTransitions bool
	BcryptCost        int
}

// Repositories groups the stores the engine depends on.
type Repositories struct {
	Customers       repository.CustomerRepository
	Addresses       repository.AddressRepository
	Variants        repository.VariantRepository
	ShippingMethods repository.ShippingMethodRepository
	Orders          repository.OrderRepository
}

// OrderService is the order engine: it turns checkouts into orders while
// reserving stock, and moves orders through their lifecycle.
type OrderService struct {
	customers repository.CustomerRepository
	addresses repository.AddressRepository
	variants  repository.VariantRepository
	shipping  repository.ShippingMethodRepository
	orders    repository.OrderRepository
	events    EventPublisher
	newCode   CodeGenerator
	opts      Options
	logger    *slog.Logger
}

// NewOrderService creates the order engine. A nil publisher disables events.
func NewOrderService(repos Repositories, events EventPublisher, opts Options, logger *slog.Logger) *OrderService {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.CodeMaxAttempts <= 0 {
		opts.CodeMaxAttempts = 5
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderService{
		customers: repos.Customers,
		addresses: repos.Addresses,
		variants:  repos.Variants,
		shipping:  repos.ShippingMethods,
		orders:    repos.Orders,
		events:    events,
		newCode:   NewOrderCode,
		opts:      opts,
		logger:    logger,
	}
}

// LineInput requests quantity units of one variant.
type LineInput struct {
	VariantID string
	Quantity  int
}

// CreateOrderInput holds the parameters for creating an order. ShippingCost
// and Tax are minor currency units.
type CreateOrderInput struct {
	Checkout         domain.Checkout
	Lines            []LineInput
	ShippingMethodID *string
	ShippingCost     int64
	Tax              int64
	Currency         string
}

// CreateOrder validates the checkout, resolves the customer and addresses,
// prices the lines and persists the order with its stock reservation.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *domain.Order, err error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, "OrderService.CreateOrder",
		attribute.Int("order.lines", len(input.Lines)))
	defer func() { end(err) }()

	currency, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}

	variants, err := s.checkLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	parties, err := s.resolveParties(ctx, input.Checkout)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                uuid.New().String(),
		CustomerID:        parties.customer.ID,
		State:             domain.StateCreated,
		Shipping:          input.ShippingCost,
		Tax:               input.Tax,
		Currency:          currency,
		ShippingAddressID: parties.shippingAddressID,
		BillingAddressID:  parties.billingAddressID,
		ShippingMethodID:  s.resolveShippingMethod(ctx, input.ShippingMethodID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	order.Lines = priceLines(order.ID, input.Lines, variants)
	order.ComputeTotals()

	if err := s.persist(ctx, order); err != nil {
		if apperrors.Code(err) == apperrors.CodeInsufficientStock {
			stockRejections.Inc()
		}
		return nil, err
	}
	ordersCreated.WithLabelValues(order.Currency).Inc()

	ctx = logger.WithOrderID(logger.WithCustomerID(ctx, order.CustomerID), order.ID)
	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish order.created event",
			slog.String("error", err.Error()),
		)
	}

	s.log(ctx).InfoContext(ctx, "order created",
		slog.String("code", order.Code),
		slog.Int64("total", order.Total),
		slog.String("currency", order.Currency),
		slog.Int("lines", len(order.Lines)),
	)
	return order, nil
}

// validateInput checks the shape of the request and returns the currency to
// use.
func (s *OrderService) validateInput(input CreateOrderInput) (string, error) {
	if input.Checkout == nil {
		return "", apperrors.InvalidInput("checkout must identify an existing or new customer")
	}
	if len(input.Lines) == 0 {
		return "", apperrors.InvalidInput("order must contain at least one line")
	}
	for i, l := range input.Lines {
		if strings.TrimSpace(l.VariantID) == "" {
			return "", apperrors.InvalidInput(fmt.Sprintf("lines[%d].variant_id is required", i))
		}
		if l.Quantity <= 0 {
			return "", apperrors.InvalidInput(fmt.Sprintf("lines[%d].quantity must be greater than 0", i))
		}
	}
	if input.ShippingCost < 0 {
		return "", apperrors.InvalidInput("shipping_cost must not be negative")
	}
	if input.Tax < 0 {
		return "", apperrors.InvalidInput("tax must not be negative")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}
	if len(currency) != 3 {
		return "", apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}
	return currency, nil
}

// checkLines loads every referenced variant and pre-checks stock. The same
// check is repeated under row locks when the order is persisted.
func (s *OrderService) checkLines(ctx context.Context, lines []LineInput) (map[string]*domain.Variant, error) {
	ids := make([]string, 0, len(lines))
	demand := make(map[string]int, len(lines))
	for _, l := range lines {
		if _, seen := demand[l.VariantID]; !seen {
			ids = append(ids, l.VariantID)
		}
		demand[l.VariantID] += l.Quantity
	}

	variants, err := s.variants.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}

	for _, l := range lines {
		v, ok := variants[l.VariantID]
		if !ok {
			return nil, apperrors.NotFound("variant", l.VariantID)
		}
		if !v.Enabled {
			return nil, apperrors.InvalidInput(fmt.Sprintf("variant %s is not available for purchase", v.SKU))
		}
		if v.StockOnHand < demand[l.VariantID] {
			stockRejections.Inc()
			return nil, apperrors.InsufficientStock(v.SKU, v.StockOnHand, demand[l.VariantID])
		}
	}
	return variants, nil
}

// priceLines captures the current unit price of each variant.
func priceLines(orderID string, lines []LineInput, variants map[string]*domain.Variant) []domain.OrderLine {
	out := make([]domain.OrderLine, len(lines))
	for i, l := range lines {
		v := variants[l.VariantID]
		unit := v.UnitPriceMinor()
		out[i] = domain.OrderLine{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			VariantID: v.ID,
			SKU:       v.SKU,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LinePrice: unit * int64(l.Quantity),
		}
	}
	return out
}

// resolveShippingMethod is the leniency policy for shipping methods: an id
// that does not resolve to an enabled method is dropped instead of failing
// the order. Store errors are treated the same way and logged.
func (s *OrderService) resolveShippingMethod(ctx context.Context, id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}

	m, err := s.shipping.GetByID(ctx, *id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.log(ctx).WarnContext(ctx, "shipping method lookup failed, ignoring",
				slog.String("shipping_method_id", *id),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	if !m.Enabled {
		return nil
	}
	resolved := m.ID
	return &resolved
}

// persist assigns a fresh code and stores the order, retrying with a new code
// when the previous one is already taken.
func (s *OrderService) persist(ctx context.Context, order *domain.Order) error {
	for attempt := 1; attempt <= s.opts.CodeMaxAttempts; attempt++ {
		code := s.newCode(order.CreatedAt)

		exists, err := s.orders.CodeExists(ctx, code)
		if err != nil {
			return fmt.Errorf("check order code: %w", err)
		}
		if !exists {
			order.Code = code
			err = s.orders.Create(ctx, order)
			if err == nil {
				return nil
			}
			if !errors.Is(err, apperrors.ErrAlreadyExists) {
				return fmt.Errorf("create order: %w", err)
			}
		}

		codeCollisions.Inc()
		s.log(ctx).WarnContext(ctx, "order code collision, regenerating",
			slog.String("code", code),
			slog.Int("attempt", attempt),
		)
	}
	order.Code = ""
	return apperrors.Conflict(fmt.Sprintf("could not allocate a unique order code after %d attempts", s.opts.CodeMaxAttempts))
}

// UpdateOrderStatus moves an order to the named state. Entering CANCELLED
// from any other state returns the reserved stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, state string) (_ *domain.Order, err error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, "OrderService.UpdateOrderStatus",
		attribute.String("order.id", id), attribute.String("order.target_state", state))
	defer func() { end(err) }()

	target, ok := domain.ParseOrderState(state)
	if !ok {
		names := make([]string, 0, len(domain.ValidStates()))
		for _, st := range domain.ValidStates() {
			names = append(names, string(st))
		}
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid state %q, must be one of: %s", state, strings.Join(names, ", ")))
	}

	change, err := s.orders.UpdateStatus(ctx, id, target, s.transitionGuard(target))
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	statusTransitions.WithLabelValues(string(change.Previous), string(target)).Inc()

	ctx = logger.WithOrderID(ctx, id)
	if err := s.events.PublishOrderStatusChanged(ctx, change); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("error", err.Error()),
		)
	}
	if change.StockRestored {
		if err := s.events.PublishOrderCanceled(ctx, change.Order); err != nil {
			s.log(ctx).ErrorContext(ctx, "failed to publish order.canceled event",
				slog.String("error", err.Error()),
			)
		}
	}

	s.log(ctx).InfoContext(ctx, "order status updated",
		slog.String("from", string(change.Previous)),
		slog.String("to", string(target)),
		slog.Bool("stock_restored", change.StockRestored),
	)
	return change.Order, nil
}

// transitionGuard returns the adjacency check when strict transitions are on.
func (s *OrderService) transitionGuard(target domain.OrderState) repository.TransitionGuard {
	if !s.opts.StrictTransitions {
		return nil
	}
	return func(from domain.OrderState) error {
		if !domain.CanTransitionStrict(from, target) {
			return apperrors.InvalidInput(fmt.Sprintf("cannot transition from %s to %s", from, target))
		}
		return nil
	}
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListOrdersInput holds the list filters.
type ListOrdersInput struct {
	State      string
	CustomerID string
	Sort       pagination.Sort
	Page       pagination.Params
}

// ListOrders returns a filtered, sorted page of orders.
func (s *OrderService) ListOrders(ctx context.Context, input ListOrdersInput) ([]domain.Order, int, error) {
	filter := repository.OrderFilter{
		SortField: input.Sort.Field,
		SortDesc:  input.Sort.Descending,
		Limit:     input.Page.PerPage,
		Offset:    input.Page.Offset,
	}
	if filter.SortField == "" {
		filter.SortField = repository.SortCreatedAt
		filter.SortDesc = true
	}
	if input.State != "" {
		st, ok := domain.ParseOrderState(input.State)
		if !ok {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid state filter %q", input.State))
		}
		filter.State = &st
	}
	if input.CustomerID != "" {
		filter.CustomerID = &input.CustomerID
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// SearchOrders finds orders by code or customer name and email.
func (s *OrderService) SearchOrders(ctx context.Context, term string, page pagination.Params) ([]domain.Order, int, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, 0, apperrors.InvalidInput("search term is required")
	}

	orders, total, err := s.orders.Search(ctx, repository.SearchFilter{
		Term:   term,
		Limit:  page.PerPage,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search orders: %w", err)
	}
	return orders, total, nil
}

// UpdateVariantPrice changes a variant's unit price. Existing order lines
// keep the price captured when they were created.
func (s *OrderService) UpdateVariantPrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error) {
	if price.IsNegative() {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if !price.Equal(price.Round(2)) {
		return nil, apperrors.InvalidInput("price must have at most 2 decimal places")
	}

	v, err := s.variants.UpdatePrice(ctx, id, price)
	if err != nil {
		return nil, fmt.Errorf("update variant price: %w", err)
	}

	s.log(ctx).InfoContext(ctx, "variant price updated",
		slog.String("variant_id", id),
		slog.String("sku", v.SKU),
		slog.String("price", v.Price.StringFixed(2)),
	)
	return v, nil
}

func (s *OrderService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(context.Context, *domain.Order) error { return nil }
func (noopPublisher) PublishOrderStatusChanged(context.Context, *domain.StatusChange) error {
	return nil
}
func (noopPublisher) PublishOrderCanceled(context.Context, *domain.Order) error { return nil }
