package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/database"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

// price is read as text so NUMERIC keeps its exact decimal value.
const variantColumns = `id, product_id, sku, name, price::text, stock_on_hand, enabled, updated_at`

// VariantRepository implements repository.VariantRepository using PostgreSQL.
type VariantRepository struct {
	pool database.DBTX
}

// NewVariantRepository creates a new PostgreSQL-backed variant repository.
func NewVariantRepository(pool database.DBTX) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// GetByID retrieves a variant by id.
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE id = $1`
	v, err := scanVariant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", id)
		}
		return nil, fmt.Errorf("get variant by id: %w", err)
	}
	return v, nil
}

// GetByIDs retrieves the variants among ids that exist.
func (r *VariantRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Variant, len(ids))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}
	return out, nil
}

// UpdatePrice sets the unit price of a variant. Stock is left untouched.
func (r *VariantRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error) {
	query := `
		UPDATE variants
		SET price = $1::numeric, updated_at = $2
		WHERE id = $3
		RETURNING ` + variantColumns

	v, err := scanVariant(r.pool.QueryRow(ctx, query, price.String(), time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", id)
		}
		return nil, fmt.Errorf("update variant price: %w", err)
	}
	return v, nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var (
		v     domain.Variant
		price string
	)
	if err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.Name,
		&price,
		&v.StockOnHand,
		&v.Enabled,
		&v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	v.Price = d
	return &v, nil
}
