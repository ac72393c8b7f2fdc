// Package memory is an in-process implementation of the order engine stores.
// A single mutex serializes every write, which gives each Create and
// UpdateStatus the same all-or-nothing visibility a database transaction does.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/repository"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

// Store holds every entity of the order engine.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	emails    map[string]string // lower(email) -> customer id
	addresses map[string]domain.Address
	variants  map[string]domain.Variant
	shipping  map[string]domain.ShippingMethod
	orders    map[string]domain.Order
	codes     map[string]string // code -> order id
	movements []domain.StockMovement
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		emails:    make(map[string]string),
		addresses: make(map[string]domain.Address),
		variants:  make(map[string]domain.Variant),
		shipping:  make(map[string]domain.ShippingMethod),
		orders:    make(map[string]domain.Order),
		codes:     make(map[string]string),
	}
}

// PutVariant inserts or replaces a variant.
func (s *Store) PutVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// PutShippingMethod inserts or replaces a shipping method.
func (s *Store) PutShippingMethod(m domain.ShippingMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipping[m.ID] = m
}

// PutCustomer inserts or replaces a customer, bypassing the email check.
func (s *Store) PutCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	s.emails[strings.ToLower(c.Email)] = c.ID
}

// Movements returns a copy of the stock ledger.
func (s *Store) Movements() []domain.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StockMovement(nil), s.movements...)
}

// CustomerCount returns the number of stored customers.
func (s *Store) CustomerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers)
}

// OrderCount returns the number of stored orders.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Customers returns the Customer Directory view of the store.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s: s} }

// Addresses returns the Address Book view of the store.
func (s *Store) Addresses() *AddressRepository { return &AddressRepository{s: s} }

// Variants returns the Catalog Store view of the store.
func (s *Store) Variants() *VariantRepository { return &VariantRepository{s: s} }

// ShippingMethods returns the shipping method view of the store.
func (s *Store) ShippingMethods() *ShippingMethodRepository { return &ShippingMethodRepository{s: s} }

// Orders returns the order view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// CustomerRepository implements repository.CustomerRepository.
type CustomerRepository struct{ s *Store }

// GetByID returns the customer with id.
func (r *CustomerRepository) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, apperrors.NotFound("customer", id)
	}
	return &c, nil
}

// GetByEmail looks a customer up by email, ignoring case.
func (r *CustomerRepository) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.NotFound("customer", email)
	}
	c := r.s.customers[id]
	return &c, nil
}

// Create stores c, failing when its email is already registered.
func (r *CustomerRepository) Create(_ context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(c.Email)
	if _, taken := r.s.emails[key]; taken {
		return apperrors.AlreadyExists("customer", "email", c.Email)
	}
	r.s.customers[c.ID] = *c
	r.s.emails[key] = c.ID
	return nil
}

// AddressRepository implements repository.AddressRepository.
type AddressRepository struct{ s *Store }

// Create stores a under an existing customer.
func (r *AddressRepository) Create(_ context.Context, a *domain.Address) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[a.CustomerID]; !ok {
		return apperrors.NotFound("customer", a.CustomerID)
	}
	r.s.addresses[a.ID] = *a
	return nil
}

// GetByID returns the address with id.
func (r *AddressRepository) GetByID(_ context.Context, id string) (*domain.Address, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, apperrors.NotFound("address", id)
	}
	return &a, nil
}

// VariantRepository implements repository.VariantRepository.
type VariantRepository struct{ s *Store }

// GetByID returns the variant with id.
func (r *VariantRepository) GetByID(_ context.Context, id string) (*domain.Variant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.variants[id]
	if !ok {
		return nil, apperrors.NotFound("variant", id)
	}
	return &v, nil
}

// GetByIDs returns the known variants among ids, keyed by id.
func (r *VariantRepository) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Variant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*domain.Variant, len(ids))
	for _, id := range ids {
		if v, ok := r.s.variants[id]; ok {
			out[id] = &v
		}
	}
	return out, nil
}

// UpdatePrice sets the unit price of a variant.
func (r *VariantRepository) UpdatePrice(_ context.Context, id string, price decimal.Decimal) (*domain.Variant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.variants[id]
	if !ok {
		return nil, apperrors.NotFound("variant", id)
	}
	v.Price = price
	v.UpdatedAt = time.Now().UTC()
	r.s.variants[id] = v
	return &v, nil
}

// ShippingMethodRepository implements repository.ShippingMethodRepository.
type ShippingMethodRepository struct{ s *Store }

// GetByID returns the shipping method with id.
func (r *ShippingMethodRepository) GetByID(_ context.Context, id string) (*domain.ShippingMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.shipping[id]
	if !ok {
		return nil, apperrors.NotFound("shipping method", id)
	}
	return &m, nil
}

// OrderRepository implements repository.OrderRepository.
type OrderRepository struct{ s *Store }

// CodeExists reports whether an order already uses code.
func (r *OrderRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.codes[code]
	return ok, nil
}

// Create validates every line against current stock before mutating
// anything, so a failure leaves the store untouched.
func (r *OrderRepository) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.codes[o.Code]; taken {
		return apperrors.AlreadyExists("order", "code", o.Code)
	}

	demand := make(map[string]int, len(o.Lines))
	for _, l := range o.Lines {
		demand[l.VariantID] += l.Quantity
	}
	for _, l := range o.Lines {
		v, ok := r.s.variants[l.VariantID]
		if !ok {
			return apperrors.NotFound("variant", l.VariantID)
		}
		if v.StockOnHand < demand[l.VariantID] {
			return apperrors.InsufficientStock(v.SKU, v.StockOnHand, demand[l.VariantID])
		}
	}

	for _, id := range sortedIDs(demand) {
		r.s.adjust(id, o.ID, -demand[id], domain.MovementOrderPlaced, o.CreatedAt)
	}
	r.s.orders[o.ID] = cloneOrder(o)
	r.s.codes[o.Code] = o.ID
	return nil
}

// GetByID returns a copy of the order with id.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	c := cloneOrder(&o)
	return &c, nil
}

// GetByCode returns the order with the given code.
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	r.s.mu.RLock()
	id, ok := r.s.codes[code]
	r.s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("order", code)
	}
	return r.GetByID(ctx, id)
}

// List returns a sorted page of orders and the unpaged total.
func (r *OrderRepository) List(_ context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.Order
	for _, o := range r.s.orders {
		if f.State != nil && o.State != *f.State {
			continue
		}
		if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
			continue
		}
		matched = append(matched, cloneOrder(&o))
	}
	sortOrders(matched, f.SortField, f.SortDesc)
	return paginate(matched, f.Limit, f.Offset), len(matched), nil
}

// Search matches f.Term against order codes and customer details.
func (r *OrderRepository) Search(_ context.Context, f repository.SearchFilter) ([]domain.Order, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	term := strings.ToLower(f.Term)
	var matched []domain.Order
	for _, o := range r.s.orders {
		c := r.s.customers[o.CustomerID]
		for _, field := range []string{o.Code, c.FirstName, c.LastName, c.Email} {
			if strings.Contains(strings.ToLower(field), term) {
				matched = append(matched, cloneOrder(&o))
				break
			}
		}
	}
	sortOrders(matched, repository.SortCreatedAt, true)
	return paginate(matched, f.Limit, f.Offset), len(matched), nil
}

// UpdateStatus writes the target state, restoring stock when the order
// enters CANCELLED. Orders in a terminal state only accept a repeat of it.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, target domain.OrderState, guard repository.TransitionGuard) (*domain.StatusChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	previous := o.State
	if guard != nil {
		if err := guard(previous); err != nil {
			return nil, err
		}
	}
	if !domain.CanLeave(previous, target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order in terminal state %s cannot move to %s", previous, target))
	}

	now := time.Now().UTC()
	restored := false
	if target == domain.StateCancelled && previous != domain.StateCancelled {
		demand := make(map[string]int, len(o.Lines))
		for _, l := range o.Lines {
			demand[l.VariantID] += l.Quantity
		}
		for _, vid := range sortedIDs(demand) {
			r.s.adjust(vid, o.ID, demand[vid], domain.MovementOrderCancelled, now)
		}
		restored = true
	}

	o.State = target
	o.UpdatedAt = now
	r.s.orders[id] = o

	out := cloneOrder(&o)
	return &domain.StatusChange{Order: &out, Previous: previous, StockRestored: restored}, nil
}

// adjust applies a stock delta and records it. Caller holds the write lock.
func (s *Store) adjust(variantID, orderID string, delta int, reason string, at time.Time) {
	v := s.variants[variantID]
	v.StockOnHand += delta
	v.UpdatedAt = at
	s.variants[variantID] = v
	s.movements = append(s.movements, domain.StockMovement{
		ID:        uuid.New().String(),
		VariantID: variantID,
		OrderID:   orderID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: at,
	})
}

func cloneOrder(o *domain.Order) domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine{}, o.Lines...)
	if o.ShippingMethodID != nil {
		id := *o.ShippingMethodID
		c.ShippingMethodID = &id
	}
	return c
}

func sortedIDs(m map[string]int) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortOrders(orders []domain.Order, field string, desc bool) {
	less := func(a, b *domain.Order) bool {
		switch field {
		case repository.SortUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case repository.SortTotal:
			if a.Total != b.Total {
				return a.Total < b.Total
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if desc {
			return less(&orders[j], &orders[i])
		}
		return less(&orders[i], &orders[j])
	})
}

func paginate(orders []domain.Order, limit, offset int) []domain.Order {
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(orders) {
		return []domain.Order{}
	}
	end := offset + limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[offset:end]
}

var (
	_ repository.CustomerRepository       = (*CustomerRepository)(nil)
	_ repository.AddressRepository        = (*AddressRepository)(nil)
	_ repository.VariantRepository        = (*VariantRepository)(nil)
	_ repository.ShippingMethodRepository = (*ShippingMethodRepository)(nil)
	_ repository.OrderRepository          = (*OrderRepository)(nil)
)
