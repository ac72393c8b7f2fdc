package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository/memory"
)

// Shipping method ids match the rows seeded by the postgres migration.
var demoShippingMethods = []domain.ShippingMethod{
	{ID: "6f1c8a52-3d4e-4b7a-9c1e-2a5b7d9e0f11", Code: "standard", Name: "Standard delivery", Enabled: true},
	{ID: "8b2d9c63-4e5f-4c8b-ad2f-3b6c8e0f1a22", Code: "express", Name: "Express delivery", Enabled: true},
}

var demoVariants = []struct {
	id, productID, sku, name, price string
	stock                           int
}{
	{"0b6a1f3e-5c2d-4e8f-9a1b-1c2d3e4f5a01", "a1c5e7f9-2b4d-4c6e-8f0a-1b3d5f7a9c01", "TSH-BLK-M", "T-Shirt Black M", "19.99", 25},
	{"0b6a1f3e-5c2d-4e8f-9a1b-1c2d3e4f5a02", "a1c5e7f9-2b4d-4c6e-8f0a-1b3d5f7a9c01", "TSH-BLK-L", "T-Shirt Black L", "19.99", 10},
	{"0b6a1f3e-5c2d-4e8f-9a1b-1c2d3e4f5a03", "a1c5e7f9-2b4d-4c6e-8f0a-1b3d5f7a9c02", "MUG-WHT", "Mug White", "8.50", 40},
	{"0b6a1f3e-5c2d-4e8f-9a1b-1c2d3e4f5a04", "a1c5e7f9-2b4d-4c6e-8f0a-1b3d5f7a9c03", "CAP-RED", "Cap Red", "12.00", 3},
}

// seedCatalog fills an in-memory store with a small demo catalog so the
// memory driver can take orders without a database.
func seedCatalog(store *memory.Store) {
	now := time.Now().UTC()
	for _, m := range demoShippingMethods {
		store.PutShippingMethod(m)
	}
	for _, v := range demoVariants {
		store.PutVariant(domain.Variant{
			ID:          v.id,
			ProductID:   v.productID,
			SKU:         v.sku,
			Name:        v.name,
			Price:       decimal.RequireFromString(v.price),
			StockOnHand: v.stock,
			Enabled:     true,
			UpdatedAt:   now,
		})
	}
}
