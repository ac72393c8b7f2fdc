package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/event"
	pkgkafka "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/kafka"
)

// Projections is the write side of the analytics read model.
type Projections interface {
	RecordOrder(ctx context.Context, o *event.OrderData) (bool, error)
	RevertOrder(ctx context.Context, o *event.OrderData) (bool, error)
}

// Aggregator folds order events into the projections.
type Aggregator struct {
	projections Projections
	logger      *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(projections Projections, logger *slog.Logger) *Aggregator {
	return &Aggregator{projections: projections, logger: logger}
}

// Topics returns the topics the aggregator consumes.
func (a *Aggregator) Topics() []string {
	return []string{event.TopicOrderCreated, event.TopicOrderCanceled}
}

// Handle applies one event. Events of other types are ignored.
func (a *Aggregator) Handle(ctx context.Context, e *pkgkafka.Event) error {
	var apply func(context.Context, *event.OrderData) (bool, error)
	switch e.EventType {
	case event.TopicOrderCreated:
		apply = a.projections.RecordOrder
	case event.TopicOrderCanceled:
		apply = a.projections.RevertOrder
	default:
		return nil
	}

	var data event.OrderData
	if err := e.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}

	applied, err := apply(ctx, &data)
	if err != nil {
		return err
	}
	a.logger.DebugContext(ctx, "analytics event applied",
		slog.String("event_type", e.EventType),
		slog.String("order_id", data.ID),
		slog.Bool("applied", applied),
	)
	return nil
}
