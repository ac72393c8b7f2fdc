package analytics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/event"
)

const (
	keyRecorded   = "analytics:orders:recorded"
	keyOrderCount = "analytics:orders:count"
	keyCancelled  = "analytics:orders:cancelled"
	keyRevenue    = "analytics:revenue"
	keyTopSellers = "analytics:top_sellers"
)

// recordScript adds an order to the projections once. ARGV holds the order
// id, currency, total, then sku/quantity pairs.
var recordScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('INCR', KEYS[2])
redis.call('HINCRBY', KEYS[3], ARGV[2], ARGV[3])
for i = 4, #ARGV, 2 do
	redis.call('ZINCRBY', KEYS[4], ARGV[i+1], ARGV[i])
end
return 1
`)

// revertScript backs a recorded order out of the projections once.
var revertScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('DECR', KEYS[2])
redis.call('INCR', KEYS[5])
redis.call('HINCRBY', KEYS[3], ARGV[2], -tonumber(ARGV[3]))
for i = 4, #ARGV, 2 do
	local left = redis.call('ZINCRBY', KEYS[4], -tonumber(ARGV[i+1]), ARGV[i])
	if tonumber(left) <= 0 then
		redis.call('ZREM', KEYS[4], ARGV[i])
	end
end
return 1
`)

// TopSeller is a SKU ranked by units sold.
type TopSeller struct {
	SKU   string `json:"sku"`
	Units int64  `json:"units"`
}

// Summary is the read model served to dashboards. Revenue is in minor units
// per currency.
type Summary struct {
	OrderCount     int64            `json:"order_count"`
	CancelledCount int64            `json:"cancelled_count"`
	Revenue        map[string]int64 `json:"revenue"`
	TopSellers     []TopSeller      `json:"top_sellers"`
}

// RedisStore keeps the order projections in Redis. Each order is applied and
// reverted at most once, keyed by order id.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a projection store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// RecordOrder adds the order to the projections. It reports false if the
// order had already been recorded.
func (s *RedisStore) RecordOrder(ctx context.Context, o *event.OrderData) (bool, error) {
	applied, err := recordScript.Run(ctx, s.client,
		[]string{keyRecorded, keyOrderCount, keyRevenue, keyTopSellers},
		orderArgs(o)...).Int()
	if err != nil {
		return false, fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return applied == 1, nil
}

// RevertOrder removes a recorded order from the projections. It reports false
// if the order was not recorded or was already reverted.
func (s *RedisStore) RevertOrder(ctx context.Context, o *event.OrderData) (bool, error) {
	applied, err := revertScript.Run(ctx, s.client,
		[]string{keyRecorded, keyOrderCount, keyRevenue, keyTopSellers, keyCancelled},
		orderArgs(o)...).Int()
	if err != nil {
		return false, fmt.Errorf("revert order %s: %w", o.ID, err)
	}
	return applied == 1, nil
}

// Summary reads the projections. top bounds the number of top sellers.
func (s *RedisStore) Summary(ctx context.Context, top int) (*Summary, error) {
	if top <= 0 {
		top = 10
	}

	var (
		count     *redis.StringCmd
		cancelled *redis.StringCmd
		revenue   *redis.MapStringStringCmd
		sellers   *redis.ZSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Get(ctx, keyOrderCount)
		cancelled = p.Get(ctx, keyCancelled)
		revenue = p.HGetAll(ctx, keyRevenue)
		sellers = p.ZRevRangeWithScores(ctx, keyTopSellers, 0, int64(top-1))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read analytics summary: %w", err)
	}

	out := &Summary{Revenue: make(map[string]int64), TopSellers: []TopSeller{}}
	if out.OrderCount, err = intOrZero(count); err != nil {
		return nil, err
	}
	if out.CancelledCount, err = intOrZero(cancelled); err != nil {
		return nil, err
	}
	for currency, v := range revenue.Val() {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse revenue for %s: %w", currency, err)
		}
		out.Revenue[currency] = n
	}
	for _, z := range sellers.Val() {
		sku, _ := z.Member.(string)
		out.TopSellers = append(out.TopSellers, TopSeller{SKU: sku, Units: int64(z.Score)})
	}
	return out, nil
}

func orderArgs(o *event.OrderData) []any {
	units := make(map[string]int64, len(o.Lines))
	skus := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		if _, ok := units[l.SKU]; !ok {
			skus = append(skus, l.SKU)
		}
		units[l.SKU] += int64(l.Quantity)
	}

	args := make([]any, 0, 3+2*len(skus))
	args = append(args, o.ID, o.Currency, o.Total)
	for _, sku := range skus {
		args = append(args, sku, units[sku])
	}
	return args
}

func intOrZero(cmd *redis.StringCmd) (int64, error) {
	n, err := cmd.Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return n, nil
}
