package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	pkgkafka "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/kafka"
)

// Kafka topics for order lifecycle events.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicOrderCanceled      = pkgkafka.Topic("order", "canceled")
)

// Topics lists every topic the engine publishes to.
func Topics() []string {
	return []string{TopicOrderCreated, TopicOrderStatusChanged, TopicOrderCanceled}
}

const (
	AggregateTypeOrder = "order"
	SourceOrderEngine  = "order-engine"

	MetadataOrderCode  = "order_code"
	MetadataOrderState = "order_state"
)

// OrderLineData is one line of an order snapshot.
type OrderLineData struct {
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LinePrice int64  `json:"line_price"`
}

// OrderData is the order snapshot carried by created and canceled events.
type OrderData struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	CustomerID string          `json:"customer_id"`
	State      string          `json:"state"`
	Lines      []OrderLineData `json:"lines"`
	SubTotal   int64           `json:"sub_total"`
	Shipping   int64           `json:"shipping"`
	Tax        int64           `json:"tax"`
	Total      int64           `json:"total"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderStatusChangedData is the payload of an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID       string `json:"order_id"`
	Code          string `json:"code"`
	OldState      string `json:"old_state"`
	NewState      string `json:"new_state"`
	StockRestored bool   `json:"stock_restored"`
}

// Publisher sends an envelope to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new order event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishOrderCreated publishes the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, order, snapshot(order))
}

// PublishOrderStatusChanged publishes the state transition.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, change *domain.StatusChange) error {
	return p.publish(ctx, TopicOrderStatusChanged, change.Order, OrderStatusChangedData{
		OrderID:       change.Order.ID,
		Code:          change.Order.Code,
		OldState:      string(change.Previous),
		NewState:      string(change.Order.State),
		StockRestored: change.StockRestored,
	})
}

// PublishOrderCanceled publishes the snapshot of an order whose stock was
// returned.
func (p *Producer) PublishOrderCanceled(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCanceled, order, snapshot(order))
}

// publish wraps data in an envelope keyed by the order id. The order code and
// state ride along as metadata so consumers can route without decoding data.
func (p *Producer) publish(ctx context.Context, topic string, order *domain.Order, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, order.ID, AggregateTypeOrder, SourceOrderEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithMetadata(MetadataOrderCode, order.Code).
		WithMetadata(MetadataOrderState, string(order.State))
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published order event",
		slog.String("topic", topic),
		slog.String("order_id", order.ID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func snapshot(o *domain.Order) OrderData {
	lines := make([]OrderLineData, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineData{
			VariantID: l.VariantID,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LinePrice: l.LinePrice,
		}
	}
	return OrderData{
		ID:         o.ID,
		Code:       o.Code,
		CustomerID: o.CustomerID,
		State:      string(o.State),
		Lines:      lines,
		SubTotal:   o.SubTotal,
		Shipping:   o.Shipping,
		Tax:        o.Tax,
		Total:      o.Total,
		Currency:   o.Currency,
		CreatedAt:  o.CreatedAt,
	}
}
