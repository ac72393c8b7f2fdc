package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is the purchasable SKU-level unit of a product. Price is in major
// currency units; StockOnHand is never negative.
type Variant struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	StockOnHand int             `json:"stock_on_hand"`
	Enabled     bool            `json:"enabled"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnitPriceMinor returns Price in minor units, rounded half away from zero.
func (v *Variant) UnitPriceMinor() int64 {
	return ToMinorUnits(v.Price)
}

// ToMinorUnits converts a major-unit amount to an integer of minor units.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// ShippingMethod is a selectable delivery option.
type ShippingMethod struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Stock movement reasons.
const (
	MovementOrderPlaced    = "order_placed"
	MovementOrderCancelled = "order_cancelled"
)

// StockMovement is one ledger entry of a stock change.
type StockMovement struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	OrderID   string    `json:"order_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
