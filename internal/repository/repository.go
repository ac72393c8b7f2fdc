package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
)

// Sortable order columns.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortTotal     = "total"
)

// SortFields lists the columns orders may be sorted by.
var SortFields = []string{SortCreatedAt, SortUpdatedAt, SortTotal}

// OrderFilter defines filter, sort and paging criteria for listing orders.
type OrderFilter struct {
	State      *domain.OrderState
	CustomerID *string
	SortField  string
	SortDesc   bool
	Limit      int
	Offset     int
}

// SearchFilter matches Term case-insensitively against the order code and the
// customer's first name, last name and email.
type SearchFilter struct {
	Term   string
	Limit  int
	Offset int
}

// TransitionGuard is evaluated against the locked current state before a
// status write. A non-nil error aborts the write.
type TransitionGuard func(from domain.OrderState) error

// CustomerRepository is the Customer Directory.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)

	// GetByEmail matches case-insensitively. Returns apperrors.ErrNotFound
	// when no customer has the email.
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)

	// Create returns apperrors.ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, c *domain.Customer) error
}

// AddressRepository is the Address Book.
type AddressRepository interface {
	Create(ctx context.Context, a *domain.Address) error
	GetByID(ctx context.Context, id string) (*domain.Address, error)
}

// VariantRepository is the read side of the Catalog Store. Stock is only
// mutated through OrderRepository.
type VariantRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)

	// GetByIDs returns the variants that exist, keyed by id.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Variant, error)

	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (*domain.Variant, error)
}

// ShippingMethodRepository looks up shipping methods.
type ShippingMethodRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ShippingMethod, error)
}

// OrderRepository persists orders together with their stock effects.
type OrderRepository interface {
	// CodeExists reports whether an order already uses code.
	CodeExists(ctx context.Context, code string) (bool, error)

	// Create locks every referenced variant, re-checks stock, decrements it,
	// records the stock movements and inserts the order with its lines, all
	// in one transaction. It returns an apperrors.CodeInsufficientStock error
	// when a line can no longer be fulfilled and apperrors.ErrAlreadyExists
	// when the order code collides. Nothing is written on error.
	Create(ctx context.Context, order *domain.Order) error

	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByCode resolves a payment reference back to its order.
	GetByCode(ctx context.Context, code string) (*domain.Order, error)

	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	Search(ctx context.Context, filter SearchFilter) ([]domain.Order, int, error)

	// UpdateStatus locks the order, runs guard against its current state and
	// writes the target state. When the target is CANCELLED and the current
	// state is not, every line's quantity is returned to its variant in the
	// same transaction.
	UpdateStatus(ctx context.Context, id string, target domain.OrderState, guard TransitionGuard) (*domain.StatusChange, error)
}
