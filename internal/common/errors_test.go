package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"nil", nil, http.StatusOK, "Internal"},
		{"invalid input", fmt.Errorf("amount must be positive: %w", ErrInvalidInput), http.StatusBadRequest, "InvalidInput"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", fmt.Errorf("list all: %w", ErrForbidden), http.StatusForbidden, "Forbidden"},
		{"not found", ErrNotFound, http.StatusNotFound, "NotFound"},
		{"method", ErrMethodNotAllowed, http.StatusMethodNotAllowed, "MethodNotAllowed"},
		{"conflict", ErrConflict, http.StatusConflict, "Conflict"},
		{"transition", ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
		{"media type", ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "UnsupportedMediaType"},
		{"too large", ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PayloadTooLarge"},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable, "Unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromError(tt.err))
			if tt.err != nil {
				assert.Equal(t, tt.kind, KindOf(tt.err))
			}
		})
	}
}

func TestPublicMessageHidesStoreDetails(t *testing.T) {
	err := fmt.Errorf("expenseRepository.Create: %w: dial tcp 10.0.0.3:5432: connection refused", ErrUnavailable)
	assert.NotContains(t, PublicMessage(err), "10.0.0.3")
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: relation missing")))

	err = fmt.Errorf("amount must be greater than zero: %w", ErrInvalidInput)
	assert.Equal(t, err.Error(), PublicMessage(err))
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/expenses/all", nil)

	RespondWithError(rec, req, fmt.Errorf("list all requests: %w", ErrForbidden))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Forbidden","message":"list all requests: forbidden"}`, rec.Body.String())
}
