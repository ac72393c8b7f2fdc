package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/errors"
)

func TestClient_RetriesServerErrorsAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"amount":2250}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := New(Config{Timeout: time.Second, MaxRetries: 2, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond, MaxConnsPerHost: 5})
	req, err := NewJSONRequest(context.Background(), http.MethodPost, server.URL, map[string]int{"amount": 2250})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{Timeout: time.Second, MaxRetries: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, MaxConnsPerHost: 5})
	req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewJSONRequest_Headers(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), http.MethodPost, "http://gateway.local/transaction/initialize", map[string]string{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))

	req, err = NewJSONRequest(context.Background(), http.MethodGet, "http://gateway.local/transaction/verify/ORD-1", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestDecodeJSON(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(`{"reference":"ORD-1"}`))}
	var out struct {
		Reference string `json:"reference"`
	}
	require.NoError(t, DecodeJSON(resp, &out))
	assert.Equal(t, "ORD-1", out.Reference)
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat gateway message", `{"status":false,"message":"Invalid key"}`, "Invalid key"},
		{"platform envelope", `{"error":{"code":"NOT_FOUND","message":"transaction not found"}}`, "transaction not found"},
		{"plain text", "upstream exploded", "upstream exploded"},
		{"empty body", "", "status 401 Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(tt.body))}
			err := ParseResponseError(resp, "payment gateway")

			assert.ErrorIs(t, err, apperrors.ErrExternalService)
			assert.Equal(t, "payment gateway: "+tt.want, err.Message)
			assert.Equal(t, http.StatusBadGateway, err.Status)
		})
	}
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(http.StatusOK))
	assert.True(t, IsSuccess(http.StatusCreated))
	assert.False(t, IsSuccess(http.StatusBadRequest))

}
