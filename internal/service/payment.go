package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/payment"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/logger"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/tracing"
)

// PaymentService drives an order through payment with an external gateway.
// The gateway is called after the order has been committed, never inside the
// stock transaction.
type PaymentService struct {
	orders    repository.OrderRepository
	customers repository.CustomerRepository
	gateway   payment.Gateway
	events    EventPublisher
	logger    *slog.Logger
}

// NewPaymentService creates a PaymentService. A nil publisher disables events.
func NewPaymentService(orders repository.OrderRepository, customers repository.CustomerRepository, gateway payment.Gateway, events EventPublisher, logger *slog.Logger) *PaymentService {
	if events == nil {
		events = noopPublisher{}
	}
	return &PaymentService{
		orders:    orders,
		customers: customers,
		gateway:   gateway,
		events:    events,
		logger:    logger,
	}
}

// PaymentInitialization is returned to the shopper to complete payment.
type PaymentInitialization struct {
	Order   *domain.Order    `json:"order"`
	Session *payment.Session `json:"session"`
}

// InitializePayment opens a gateway session for the order total, keyed by the
// order id with the order code as reference, and moves the order to
// PAYMENT_PENDING.
func (s *PaymentService) InitializePayment(ctx context.Context, orderID string) (_ *PaymentInitialization, err error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, "PaymentService.InitializePayment",
		attribute.String("order.id", orderID))
	defer func() { end(err) }()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, "get order")
	}
	if err := allowFrom(order.State, domain.StateCreated, domain.StatePaymentPending); err != nil {
		return nil, err
	}

	customer, err := s.customers.GetByID(ctx, order.CustomerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "get customer")
	}

	session, err := s.gateway.Initialize(ctx, &payment.InitializeRequest{
		OrderID:   order.ID,
		Reference: order.Code,
		Email:     customer.Email,
		Amount:    order.Total,
		Currency:  order.Currency,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "initialize payment")
	}

	updated, err := s.transition(ctx, order.ID, domain.StatePaymentPending, domain.StateCreated, domain.StatePaymentPending)
	if err != nil {
		return nil, err
	}
	return &PaymentInitialization{Order: updated, Session: session}, nil
}

// VerifyPayment asks the gateway for the outcome of the order's transaction.
// A successful payment for the full total moves the order to PAYMENT_SETTLED;
// anything else leaves the order untouched.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderID string) (_ *domain.Order, _ *payment.Verification, err error) {
	ctx, end := tracing.StartSpan(ctx, tracerName, "PaymentService.VerifyPayment",
		attribute.String("order.id", orderID))
	defer func() { end(err) }()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "get order")
	}

	v, err := s.gateway.Verify(ctx, order.Code)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "verify payment")
	}
	if order.State == domain.StatePaymentSettled {
		return order, v, nil
	}
	if err := allowFrom(order.State, domain.StatePaymentPending, domain.StatePaymentAuthorized); err != nil {
		return nil, nil, err
	}
	if !v.Successful() {
		s.log(ctx).WarnContext(ctx, "payment not successful",
			slog.String("reference", order.Code),
			slog.String("gateway_status", v.Status),
		)
		return order, v, nil
	}
	if v.Amount != order.Total {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("paid amount %d does not match order total %d", v.Amount, order.Total))
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, order.Currency) {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("paid currency %s does not match order currency %s", v.Currency, order.Currency))
	}

	updated, err := s.transition(ctx, order.ID, domain.StatePaymentSettled, domain.StatePaymentPending, domain.StatePaymentAuthorized)
	if err != nil {
		return nil, nil, err
	}
	return updated, v, nil
}

// transition writes target under a row lock, re-checking that the order is
// still in one of the allowed states.
func (s *PaymentService) transition(ctx context.Context, id string, target domain.OrderState, allowed ...domain.OrderState) (*domain.Order, error) {
	change, err := s.orders.UpdateStatus(ctx, id, target, func(from domain.OrderState) error {
		return allowFrom(from, allowed...)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "update order status")
	}
	statusTransitions.WithLabelValues(string(change.Previous), string(target)).Inc()

	ctx = logger.WithOrderID(ctx, id)
	if err := s.events.PublishOrderStatusChanged(ctx, change); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("error", err.Error()),
		)
	}
	s.log(ctx).InfoContext(ctx, "order payment state updated",
		slog.String("from", string(change.Previous)),
		slog.String("to", string(target)),
	)
	return change.Order, nil
}

func (s *PaymentService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

func allowFrom(from domain.OrderState, allowed ...domain.OrderState) error {
	for _, st := range allowed {
		if from == st {
			return nil
		}
	}
	return apperrors.Conflict(fmt.Sprintf("order in state %s cannot take a payment", from))
}
