package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/httpclient"
)

// HTTPConfig configures the REST gateway client.
type HTTPConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
}

// HTTPGateway talks to a hosted-checkout gateway over its REST API
// (POST /transaction/initialize, GET /transaction/verify/{reference}).
type HTTPGateway struct {
	client *httpclient.CircuitBreakerClient
	cfg    HTTPConfig
	logger *slog.Logger
}

// NewHTTPGateway creates a gateway client. client should already carry the
// retry and circuit breaker policy.
func NewHTTPGateway(client *httpclient.CircuitBreakerClient, cfg HTTPConfig, logger *slog.Logger) *HTTPGateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPGateway{client: client, cfg: cfg, logger: logger}
}

// Name returns the gateway name.
func (g *HTTPGateway) Name() string {
	return "payment-gateway"
}

type initializeBody struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type verifyData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

// Initialize opens a hosted checkout session.
func (g *HTTPGateway) Initialize(ctx context.Context, in *InitializeRequest) (*Session, error) {
	body := initializeBody{
		Email:       in.Email,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Reference:   in.Reference,
		CallbackURL: g.cfg.CallbackURL,
		Metadata:    map[string]string{"order_id": in.OrderID},
	}

	var out envelope[Session]
	if err := g.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	if out.Data.Reference == "" {
		out.Data.Reference = in.Reference
	}

	g.logger.InfoContext(ctx, "payment session initialized",
		slog.String("order_id", in.OrderID),
		slog.String("reference", out.Data.Reference),
	)
	return &out.Data, nil
}

// Verify fetches the transaction state for reference.
func (g *HTTPGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	var out envelope[verifyData]
	if err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return &Verification{
		Reference: out.Data.Reference,
		Status:    out.Data.Status,
		Amount:    out.Data.Amount,
		Currency:  out.Data.Currency,
		Message:   out.Data.GatewayResponse,
	}, nil
}

// do sends the request and decodes a 2xx envelope into out. Transport
// failures, an open breaker, non-2xx responses and envelopes with
// status=false all become ExternalService errors.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body any, out interface {
	ok() (bool, string)
}) error {
	req, err := httpclient.NewJSONRequest(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		switch {
		case errors.As(err, &appErr):
			return err
		case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, httpclient.ErrTooManyRequests):
			return apperrors.ExternalService(g.Name(), "gateway unavailable")
		}
		g.logger.WarnContext(ctx, "payment gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return apperrors.ExternalService(g.Name(), "gateway unreachable")
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, g.Name())
	}
	if err := httpclient.DecodeJSON(resp, out); err != nil {
		g.logger.WarnContext(ctx, "payment gateway response not decodable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return apperrors.ExternalService(g.Name(), "malformed gateway response")
	}
	if ok, msg := out.ok(); !ok {
		return externalError(g.Name(), msg)
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) {
	return e.Status, e.Message
}
