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

// AddressRepository implements repository.AddressRepository using PostgreSQL.
type AddressRepository struct {
	pool database.DBTX
}

// NewAddressRepository creates a new PostgreSQL-backed address repository.
func NewAddressRepository(pool database.DBTX) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Create inserts an address.
func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	query := `
		INSERT INTO addresses (id, customer_id, full_name, street_line_1, street_line_2, city, province, postal_code, country_code, phone, default_shipping, default_billing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.CustomerID,
		a.FullName,
		a.StreetLine1,
		a.StreetLine2,
		a.City,
		a.Province,
		a.PostalCode,
		a.CountryCode,
		a.Phone,
		a.DefaultShipping,
		a.DefaultBilling,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// GetByID retrieves an address by id.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	query := `
		SELECT id, customer_id, full_name, street_line_1, street_line_2, city, province, postal_code, country_code, phone, default_shipping, default_billing, created_at
		FROM addresses
		WHERE id = $1`

	var a domain.Address
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.CustomerID,
		&a.FullName,
		&a.StreetLine1,
		&a.StreetLine2,
		&a.City,
		&a.Province,
		&a.PostalCode,
		&a.CountryCode,
		&a.Phone,
		&a.DefaultShipping,
		&a.DefaultBilling,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("address", id)
		}
		return nil, fmt.Errorf("get address by id: %w", err)
	}
	return &a, nil
}
