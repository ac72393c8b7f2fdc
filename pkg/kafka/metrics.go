package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes recorded in consumerMessages.
const (
	outcomeReceived     = "received"
	outcomeProcessed    = "processed"
	outcomeFailed       = "failed"
	outcomeDeadLettered = "dead_lettered"
)

var (
	consumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Messages seen by consumers, by outcome.",
	}, []string{"topic", "consumer_group", "outcome"})

	consumerDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka",
		Subsystem: "consumer",
		Name:      "duplicates_skipped_total",
		Help:      "Events skipped because their ID was already processed.",
	}, []string{"event_type"})

	consumerHandleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kafka",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the handler for one message, retries included.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"topic", "consumer_group"})

	producerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafka",
		Subsystem: "producer",
		Name:      "messages_total",
		Help:      "Publish attempts, by result.",
	}, []string{"topic", "result"})

	producerPublishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kafka",
		Subsystem: "producer",
		Name:      "publish_duration_seconds",
		Help:      "Latency of a synchronous publish.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})
)

func countConsumed(topic, group, outcome string) {
	consumerMessages.WithLabelValues(topic, group, outcome).Inc()
}
