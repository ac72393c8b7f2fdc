package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

type parties struct {
	customer          *domain.Customer
	shippingAddressID string
	billingAddressID  string
}

// resolveParties finds or creates the customer and the addresses the order
// ships and bills to.
func (s *OrderService) resolveParties(ctx context.Context, checkout domain.Checkout) (*parties, error) {
	switch c := checkout.(type) {
	case domain.ExistingCustomerCheckout:
		return s.resolveExisting(ctx, c)
	case *domain.ExistingCustomerCheckout:
		return s.resolveExisting(ctx, *c)
	case domain.NewCustomerCheckout:
		return s.resolveNew(ctx, c)
	case *domain.NewCustomerCheckout:
		return s.resolveNew(ctx, *c)
	default:
		return nil, apperrors.InvalidInput("checkout must identify an existing or new customer")
	}
}

func (s *OrderService) resolveExisting(ctx context.Context, c domain.ExistingCustomerCheckout) (*parties, error) {
	if c.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id is required")
	}
	if c.ShippingAddressID == "" {
		return nil, apperrors.InvalidInput("shipping_address_id is required")
	}

	customer, err := s.customers.GetByID(ctx, c.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer.IsDeleted() {
		return nil, apperrors.NotFound("customer", c.CustomerID)
	}
	if err := checkUsable(customer); err != nil {
		return nil, err
	}

	p := &parties{customer: customer}
	if p.shippingAddressID, err = s.ownedAddress(ctx, customer.ID, c.ShippingAddressID); err != nil {
		return nil, err
	}
	p.billingAddressID = p.shippingAddressID
	if c.BillingAddressID != nil && *c.BillingAddressID != "" {
		if p.billingAddressID, err = s.ownedAddress(ctx, customer.ID, *c.BillingAddressID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *OrderService) ownedAddress(ctx context.Context, customerID, addressID string) (string, error) {
	a, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return "", fmt.Errorf("get address: %w", err)
	}
	if a.CustomerID != customerID {
		return "", apperrors.InvalidInput(fmt.Sprintf("address %s does not belong to customer %s", addressID, customerID))
	}
	return a.ID, nil
}

func (s *OrderService) resolveNew(ctx context.Context, c domain.NewCustomerCheckout) (*parties, error) {
	if err := validateNewCustomer(c); err != nil {
		return nil, err
	}

	customer, err := s.findOrCreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}

	shipping, err := s.createAddress(ctx, customer.ID, c.ShippingAddress, true, c.BillingAddress == nil)
	if err != nil {
		return nil, err
	}
	p := &parties{customer: customer, shippingAddressID: shipping.ID, billingAddressID: shipping.ID}

	if c.BillingAddress != nil {
		billing, err := s.createAddress(ctx, customer.ID, *c.BillingAddress, false, true)
		if err != nil {
			return nil, err
		}
		p.billingAddressID = billing.ID
	}
	return p, nil
}

// findOrCreateCustomer reuses the account registered under the email, or
// creates one. A concurrent checkout that wins the insert is picked up by a
// second lookup rather than surfacing as a duplicate.
func (s *OrderService) findOrCreateCustomer(ctx context.Context, c domain.NewCustomerCheckout) (*domain.Customer, error) {
	email := strings.TrimSpace(c.Email)

	existing, err := s.customers.GetByEmail(ctx, email)
	if err == nil {
		return existing, checkUsable(existing)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}

	hash, guest, err := s.credential(c.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	customer := &domain.Customer{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		PasswordHash: hash,
		Guest:        guest,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.Phone != nil {
		customer.Phone = strings.TrimSpace(*c.Phone)
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		if !errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		existing, err := s.customers.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("get customer by email: %w", err)
		}
		return existing, checkUsable(existing)
	}

	s.log(ctx).InfoContext(ctx, "customer created",
		slog.String("customer_id", customer.ID),
		slog.Bool("guest", guest),
	)
	return customer, nil
}

// credential hashes the supplied password, or a random one for guests.
func (s *OrderService) credential(password *string) (hash string, guest bool, err error) {
	secret := ""
	if password != nil && *password != "" {
		secret = *password
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", false, apperrors.Internal(fmt.Errorf("generate guest credential: %w", err))
		}
		secret = hex.EncodeToString(buf)
		guest = true
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", false, apperrors.InvalidInput("password must be at most 72 bytes")
		}
		return "", false, apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}
	return string(h), guest, nil
}

func (s *OrderService) createAddress(ctx context.Context, customerID string, in domain.AddressInput, defaultShipping, defaultBilling bool) (*domain.Address, error) {
	a := &domain.Address{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		FullName:        strings.TrimSpace(in.FullName),
		StreetLine1:     strings.TrimSpace(in.StreetLine1),
		StreetLine2:     strings.TrimSpace(in.StreetLine2),
		City:            strings.TrimSpace(in.City),
		Province:        strings.TrimSpace(in.Province),
		PostalCode:      strings.TrimSpace(in.PostalCode),
		CountryCode:     strings.ToUpper(strings.TrimSpace(in.CountryCode)),
		Phone:           strings.TrimSpace(in.Phone),
		DefaultShipping: defaultShipping,
		DefaultBilling:  defaultBilling,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return a, nil
}

func checkUsable(c *domain.Customer) error {
	if c.IsDeleted() || !c.Enabled {
		return apperrors.InvalidInput(fmt.Sprintf("customer account %s is disabled", c.Email))
	}
	return nil
}

func validateNewCustomer(c domain.NewCustomerCheckout) error {
	if strings.TrimSpace(c.Email) == "" {
		return apperrors.InvalidInput("email is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("email %q is not a valid address", c.Email))
	}
	if strings.TrimSpace(c.FirstName) == "" {
		return apperrors.InvalidInput("first_name is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		return apperrors.InvalidInput("last_name is required")
	}
	if err := validateAddress("shipping_address", c.ShippingAddress); err != nil {
		return err
	}
	if c.BillingAddress != nil {
		return validateAddress("billing_address", *c.BillingAddress)
	}
	return nil
}

func validateAddress(field string, a domain.AddressInput) error {
	required := []struct{ name, value string }{
		{"full_name", a.FullName},
		{"street_line_1", a.StreetLine1},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country_code", a.CountryCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.InvalidInput(fmt.Sprintf("%s.%s is required", field, r.name))
		}
	}
	return nil
}
