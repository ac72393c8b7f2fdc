package http

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/domain"
	"github.com/BrianNzangi/workit-ecommerce-sub003/internal/service"
)

// --- Request DTOs ---

// AddressRequest is an inline address.
type AddressRequest struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	StreetLine1 string `json:"street_line_1" validate:"required,max=255"`
	StreetLine2 string `json:"street_line_2" validate:"max=255"`
	City        string `json:"city" validate:"required,max=100"`
	Province    string `json:"province" validate:"max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=20"`
	CountryCode string `json:"country_code" validate:"required,len=2"`
	Phone       string `json:"phone" validate:"max=30"`
}

// ExistingCustomerRequest checks out with a registered customer.
type ExistingCustomerRequest struct {
	CustomerID        string  `json:"customer_id" validate:"required,uuid"`
	ShippingAddressID string  `json:"shipping_address_id" validate:"required,uuid"`
	BillingAddressID  *string `json:"billing_address_id" validate:"omitempty,uuid"`
}

// NewCustomerRequest checks out with inline identity. Omitting the password
// makes a guest checkout.
type NewCustomerRequest struct {
	Email           string          `json:"email" validate:"required,email,max=255"`
	FirstName       string          `json:"first_name" validate:"required,max=100"`
	LastName        string          `json:"last_name" validate:"required,max=100"`
	Phone           *string         `json:"phone" validate:"omitempty,max=30"`
	Password        *string         `json:"password" validate:"omitempty,min=8,max=72"`
	ShippingAddress AddressRequest  `json:"shipping_address" validate:"required"`
	BillingAddress  *AddressRequest `json:"billing_address"`
}

// LineRequest requests quantity units of a variant.
type LineRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// CreateOrderRequest is the JSON request body for creating an order. Exactly
// one of existing_customer and new_customer must be set.
type CreateOrderRequest struct {
	ExistingCustomer *ExistingCustomerRequest `json:"existing_customer" validate:"required_without=NewCustomer,excluded_with=NewCustomer"`
	NewCustomer      *NewCustomerRequest      `json:"new_customer" validate:"required_without=ExistingCustomer"`
	Lines            []LineRequest            `json:"lines" validate:"required,min=1,max=100,dive"`
	ShippingMethodID *string                  `json:"shipping_method_id"`
	ShippingCost     int64                    `json:"shipping_cost" validate:"gte=0"`
	Tax              int64                    `json:"tax" validate:"gte=0"`
	Currency         string                   `json:"currency" validate:"omitempty,len=3"`
}

// UpdateStatusRequest is the JSON request body for a state change.
type UpdateStatusRequest struct {
	State string `json:"state" validate:"required"`
}

// UpdatePriceRequest sets a variant price in major currency units, e.g.
// "19.99".
type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (r *CreateOrderRequest) toInput() service.CreateOrderInput {
	lines := make([]service.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = service.LineInput{VariantID: l.VariantID, Quantity: l.Quantity}
	}

	in := service.CreateOrderInput{
		Lines:            lines,
		ShippingMethodID: r.ShippingMethodID,
		ShippingCost:     r.ShippingCost,
		Tax:              r.Tax,
		Currency:         strings.ToUpper(r.Currency),
	}

	switch {
	case r.ExistingCustomer != nil:
		in.Checkout = domain.ExistingCustomerCheckout{
			CustomerID:        r.ExistingCustomer.CustomerID,
			ShippingAddressID: r.ExistingCustomer.ShippingAddressID,
			BillingAddressID:  r.ExistingCustomer.BillingAddressID,
		}
	case r.NewCustomer != nil:
		nc := r.NewCustomer
		checkout := domain.NewCustomerCheckout{
			Email:           nc.Email,
			FirstName:       nc.FirstName,
			LastName:        nc.LastName,
			Phone:           nc.Phone,
			Password:        nc.Password,
			ShippingAddress: nc.ShippingAddress.toDomain(),
		}
		if nc.BillingAddress != nil {
			billing := nc.BillingAddress.toDomain()
			checkout.BillingAddress = &billing
		}
		in.Checkout = checkout
	}
	return in
}

func (a AddressRequest) toDomain() domain.AddressInput {
	return domain.AddressInput{
		FullName:    a.FullName,
		StreetLine1: a.StreetLine1,
		StreetLine2: a.StreetLine2,
		City:        a.City,
		Province:    a.Province,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
	}
}
