package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolSnapshot is the subset of pgxpool statistics exported as metrics.
type poolSnapshot struct {
	Acquired         int32
	Idle             int32
	Total            int32
	Max              int32
	AcquireCount     int64
	AcquireSeconds   float64
	CanceledAcquires int64
	EmptyAcquires    int64
}

type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(poolSnapshot) float64
}

// PoolStatsCollector implements prometheus.Collector for pgxpool connection
// statistics.
type PoolStatsCollector struct {
	service  string
	snapshot func() poolSnapshot
	metrics  []poolMetric
}

// NewPoolStatsCollector creates a collector reading pool.Stat() on every scrape.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(service, func() poolSnapshot {
		s := pool.Stat()
		return poolSnapshot{
			Acquired:         s.AcquiredConns(),
			Idle:             s.IdleConns(),
			Total:            s.TotalConns(),
			Max:              s.MaxConns(),
			AcquireCount:     s.AcquireCount(),
			AcquireSeconds:   s.AcquireDuration().Seconds(),
			CanceledAcquires: s.CanceledAcquireCount(),
			EmptyAcquires:    s.EmptyAcquireCount(),
		}
	})
}

func newPoolStatsCollector(service string, snapshot func() poolSnapshot) *PoolStatsCollector {
	labels := []string{"service"}
	gauge := func(name, help string, v func(poolSnapshot) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, labels, nil), prometheus.GaugeValue, v}
	}
	counter := func(name, help string, v func(poolSnapshot) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, labels, nil), prometheus.CounterValue, v}
	}

	return &PoolStatsCollector{
		service:  service,
		snapshot: snapshot,
		metrics: []poolMetric{
			gauge("db_pool_acquired_connections", "Number of currently acquired connections",
				func(s poolSnapshot) float64 { return float64(s.Acquired) }),
			gauge("db_pool_idle_connections", "Number of currently idle connections",
				func(s poolSnapshot) float64 { return float64(s.Idle) }),
			gauge("db_pool_total_connections", "Total number of connections in the pool",
				func(s poolSnapshot) float64 { return float64(s.Total) }),
			gauge("db_pool_max_connections", "Maximum number of connections allowed",
				func(s poolSnapshot) float64 { return float64(s.Max) }),
			counter("db_pool_acquire_count_total", "Total number of connection acquires",
				func(s poolSnapshot) float64 { return float64(s.AcquireCount) }),
			counter("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds",
				func(s poolSnapshot) float64 { return s.AcquireSeconds }),
			counter("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires",
				func(s poolSnapshot) float64 { return float64(s.CanceledAcquires) }),
			counter("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection",
				func(s poolSnapshot) float64 { return float64(s.EmptyAcquires) }),
		},
	}
}

// Describe sends the descriptors of all metrics to ch.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect reads current pool statistics and sends them to ch.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}
