package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCollector() *PoolStatsCollector {
	return newPoolStatsCollector("order-engine", func() poolSnapshot {
		return poolSnapshot{
			Acquired:       3,
			Idle:           2,
			Total:          5,
			Max:            25,
			AcquireCount:   42,
			AcquireSeconds: 1.5,
		}
	})
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := fakeCollector()

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 8, n)
}

func TestPoolStatsCollector_Collect(t *testing.T) {
	c := fakeCollector()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP db_pool_acquired_connections Number of currently acquired connections
# TYPE db_pool_acquired_connections gauge
db_pool_acquired_connections{service="order-engine"} 3
# HELP db_pool_acquire_count_total Total number of connection acquires
# TYPE db_pool_acquire_count_total counter
db_pool_acquire_count_total{service="order-engine"} 42
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"db_pool_acquired_connections", "db_pool_acquire_count_total")
	assert.NoError(t, err)
	assert.Equal(t, 8, testutil.CollectAndCount(c))
}
