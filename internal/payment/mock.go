package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway is an in-process gateway for development. Every session is
// reported as settled for the amount it was opened with.
type MockGateway struct {
	mu       sync.Mutex
	sessions map[string]InitializeRequest
	delay    time.Duration
}

// NewMockGateway creates a mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]InitializeRequest), delay: 20 * time.Millisecond}
}

// Name returns the gateway name.
func (g *MockGateway) Name() string {
	return "mock"
}

// Initialize records the session and returns a fake checkout URL.
func (g *MockGateway) Initialize(ctx context.Context, req *InitializeRequest) (*Session, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.sessions[req.Reference] = *req
	g.mu.Unlock()

	code := "mock_" + uuid.New().String()
	return &Session{
		AuthorizationURL: fmt.Sprintf("https://checkout.mock.local/%s", code),
		AccessCode:       code,
		Reference:        req.Reference,
	}, nil
}

// Verify reports a known reference as successful and anything else as failed.
func (g *MockGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	req, ok := g.sessions[reference]
	g.mu.Unlock()
	if !ok {
		return &Verification{Reference: reference, Status: StatusFailed, Message: "unknown reference"}, nil
	}
	return &Verification{
		Reference: reference,
		Status:    StatusSuccess,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Message:   "Approved",
	}, nil
}

func (g *MockGateway) sleep(ctx context.Context) error {
	select {
	case <-time.After(g.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
