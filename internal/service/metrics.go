package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed, by currency.",
	}, []string{"currency"})

	stockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_stock_rejections_total",
		Help: "Checkouts rejected for insufficient stock, before or inside the transaction.",
	})

	codeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_code_collisions_total",
		Help: "Generated order codes that were already taken.",
	})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order state writes, by previous and target state.",
	}, []string{"from", "to"})
)
