package domain

// Checkout identifies who is ordering and where it ships. It is either an
// ExistingCustomerCheckout or a NewCustomerCheckout.
type Checkout interface {
	checkout()
}

// ExistingCustomerCheckout references an account and addresses that already
// exist. A nil BillingAddressID bills to the shipping address.
type ExistingCustomerCheckout struct {
	CustomerID        string
	ShippingAddressID string
	BillingAddressID  *string
}

// NewCustomerCheckout carries inline identity and addresses. The customer is
// looked up by email before one is created. A nil Password marks a guest.
type NewCustomerCheckout struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           *string
	Password        *string
	ShippingAddress AddressInput
	BillingAddress  *AddressInput
}

func (ExistingCustomerCheckout) checkout() {}
func (NewCustomerCheckout) checkout()      {}

// AddressInput is inline address data supplied at checkout.
type AddressInput struct {
	FullName    string
	StreetLine1 string
	StreetLine2 string
	City        string
	Province    string
	PostalCode  string
	CountryCode string
	Phone       string
}
