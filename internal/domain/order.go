package domain

import (
	"time"
)

// OrderState is the lifecycle state of an order.
type OrderState string

// Order states. CREATED is initial; DELIVERED and CANCELLED are terminal.
const (
	StateCreated           OrderState = "CREATED"
	StatePaymentPending    OrderState = "PAYMENT_PENDING"
	StatePaymentAuthorized OrderState = "PAYMENT_AUTHORIZED"
	StatePaymentSettled    OrderState = "PAYMENT_SETTLED"
	StateShipped           OrderState = "SHIPPED"
	StateDelivered         OrderState = "DELIVERED"
	StateCancelled         OrderState = "CANCELLED"
)

// forwardPath is the happy-path ordering of states.
var forwardPath = []OrderState{
	StateCreated,
	StatePaymentPending,
	StatePaymentAuthorized,
	StatePaymentSettled,
	StateShipped,
	StateDelivered,
}

// ValidStates returns every defined state.
func ValidStates() []OrderState {
	states := make([]OrderState, 0, len(forwardPath)+1)
	states = append(states, forwardPath...)
	return append(states, StateCancelled)
}

// ParseOrderState returns the state named by s, or false if s is not a
// defined state. Matching is exact.
func ParseOrderState(s string) (OrderState, bool) {
	for _, st := range ValidStates() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition is expected from s.
func (s OrderState) IsTerminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// CanLeave reports whether an order in from may be written as to. Terminal
// states only accept a repeat of themselves.
func CanLeave(from, to OrderState) bool {
	return !from.IsTerminal() || from == to
}

// CanTransitionStrict reports whether from -> to is allowed under the
// adjacency policy: one step forward along the happy path, CANCELLED from any
// non-terminal state, or a repeat of the current state.
func CanTransitionStrict(from, to OrderState) bool {
	if from == to {
		return true
	}
	if to == StateCancelled {
		return !from.IsTerminal()
	}
	for i := 0; i < len(forwardPath)-1; i++ {
		if forwardPath[i] == from {
			return forwardPath[i+1] == to
		}
	}
	return false
}

// Order is a customer order. Monetary fields are minor currency units.
type Order struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	CustomerID        string      `json:"customer_id"`
	State             OrderState  `json:"state"`
	SubTotal          int64       `json:"sub_total"`
	Shipping          int64       `json:"shipping"`
	Tax               int64       `json:"tax"`
	Total             int64       `json:"total"`
	Currency          string      `json:"currency"`
	ShippingAddressID string      `json:"shipping_address_id"`
	BillingAddressID  string      `json:"billing_address_id"`
	ShippingMethodID  *string     `json:"shipping_method_id,omitempty"`
	Lines             []OrderLine `json:"lines"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ComputeTotals sets SubTotal from the lines and Total from the breakdown.
func (o *Order) ComputeTotals() {
	var sub int64
	for i := range o.Lines {
		sub += o.Lines[i].LinePrice
	}
	o.SubTotal = sub
	o.Total = o.SubTotal + o.Shipping + o.Tax
}

// TotalsConsistent reports whether the monetary breakdown adds up.
func (o *Order) TotalsConsistent() bool {
	var sub int64
	for i := range o.Lines {
		sub += o.Lines[i].LinePrice
	}
	return sub == o.SubTotal && o.Total == o.SubTotal+o.Shipping+o.Tax
}

// OrderLine is one priced entry of an order. UnitPrice and LinePrice are
// captured at creation time and never change.
type OrderLine struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LinePrice int64  `json:"line_price"`
}

// StatusChange describes the outcome of a state write.
type StatusChange struct {
	Order         *Order
	Previous      OrderState
	StockRestored bool
}
