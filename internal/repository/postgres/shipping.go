package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/database"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

// ShippingMethodRepository implements repository.ShippingMethodRepository.
type ShippingMethodRepository struct {
	pool database.DBTX
}

// NewShippingMethodRepository creates a new PostgreSQL-backed repository.
func NewShippingMethodRepository(pool database.DBTX) *ShippingMethodRepository {
	return &ShippingMethodRepository{pool: pool}
}

// GetByID retrieves a shipping method by id.
func (r *ShippingMethodRepository) GetByID(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	query := `SELECT id, code, name, enabled FROM shipping_methods WHERE id = $1`

	var m domain.ShippingMethod
	if err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Code, &m.Name, &m.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("shipping method", id)
		}
		return nil, fmt.Errorf("get shipping method by id: %w", err)
	}
	return &m, nil
}
