package domain

import "time"

// Customer is a shopper account. Guests get a random credential.
type Customer struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Guest        bool       `json:"guest"`
	Enabled      bool       `json:"enabled"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsDeleted reports whether the customer has been soft-deleted.
func (c *Customer) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Address belongs to exactly one customer.
type Address struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	FullName        string    `json:"full_name"`
	StreetLine1     string    `json:"street_line_1"`
	StreetLine2     string    `json:"street_line_2,omitempty"`
	City            string    `json:"city"`
	Province        string    `json:"province,omitempty"`
	PostalCode      string    `json:"postal_code"`
	CountryCode     string    `json:"country_code"`
	Phone           string    `json:"phone,omitempty"`
	DefaultShipping bool      `json:"default_shipping"`
	DefaultBilling  bool      `json:"default_billing"`
	CreatedAt       time.Time `json:"created_at"`
}
