package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrForbidden,
		ErrConflict, ErrServiceUnavail, ErrExternalService,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withInner := &AppError{Code: CodeInternal, Message: "boom", Err: fmt.Errorf("db connection lost")}
	assert.Equal(t, "INTERNAL_ERROR: boom: db connection lost", withInner.Error())

	bare := &AppError{Code: CodeNotFound, Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("order", "o-1"), CodeNotFound, http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("order", "code", "ORD-1"), CodeAlreadyExists, http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("lines are required"), CodeInvalidInput, http.StatusBadRequest, ErrInvalidInput},
		{"insufficient stock", InsufficientStock("SKU-1", 0, 1), CodeInsufficientStock, http.StatusBadRequest, ErrInvalidInput},
		{"forbidden", Forbidden("nope"), CodeForbidden, http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("stale"), CodeConflict, http.StatusConflict, ErrConflict},
		{"unavailable", ServiceUnavailable("down"), CodeServiceUnavail, http.StatusServiceUnavailable, ErrServiceUnavail},
		{"external", ExternalService("payment gateway", "Invalid key"), CodeExternalService, http.StatusBadGateway, ErrExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestInsufficientStock_MessageNamesSKUAndQuantities(t *testing.T) {
	err := InsufficientStock("TSHIRT-RED-M", 3, 5)
	assert.Equal(t, "insufficient stock for sku TSHIRT-RED-M: available 3, requested 5", err.Message)
}

func TestExternalService_PreservesDownstreamMessage(t *testing.T) {
	err := ExternalService("payment gateway", "Invalid key")
	assert.Contains(t, err.Message, "Invalid key")
}

func TestInternal_HidesDetail(t *testing.T) {
	err := Internal(fmt.Errorf("pq: relation does not exist"))
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get order")
	assert.Equal(t, "get order: resource not found", wrapped.Error())
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{NotFound("order", "1"), http.StatusNotFound},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
		{ErrExternalService, http.StatusBadGateway},
		{fmt.Errorf("outer: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestCode_FallsBackToSentinel(t *testing.T) {
	assert.Equal(t, CodeNotFound, Code(fmt.Errorf("wrap: %w", ErrNotFound)))
	assert.Equal(t, CodeInternal, Code(fmt.Errorf("plain")))
}
