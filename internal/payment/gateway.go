package payment

import "context"

// Verification statuses reported by a gateway.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusPending   = "pending"
)

// InitializeRequest describes the charge a customer is about to authorize.
// Amount is in minor currency units.
type InitializeRequest struct {
	OrderID   string
	Reference string
	Email     string
	Amount    int64
	Currency  string
}

// Session is what the customer needs to complete payment with the gateway.
type Session struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the gateway's view of a transaction.
type Verification struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Message   string `json:"message,omitempty"`
}

// Successful reports whether the gateway settled the transaction.
func (v *Verification) Successful() bool {
	return v.Status == StatusSuccess
}

// Gateway is the payment gateway adapter.
type Gateway interface {
	// Name identifies the gateway in logs and errors.
	Name() string

	// Initialize opens a payment session for the request.
	Initialize(ctx context.Context, req *InitializeRequest) (*Session, error)

	// Verify looks up the transaction created under reference.
	Verify(ctx context.Context, reference string) (*Verification, error)
}
