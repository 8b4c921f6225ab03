package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"chatmart/internal/repository"
	"chatmart/internal/service"
)

func TestRespondWithDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "product not found", err: repository.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "cart item not found", err: repository.ErrCartItemNotFound, wantStatus: http.StatusNotFound},
		{name: "promocode not found", err: repository.ErrPromocodeNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid quantity", err: repository.ErrInvalidQuantity, wantStatus: http.StatusBadRequest},
		{name: "invalid product", err: service.ErrInvalidProduct, wantStatus: http.StatusBadRequest},
		{name: "invalid promocode", err: service.ErrInvalidPromocode, wantStatus: http.StatusBadRequest},
		{name: "cart full", err: service.ErrCartFull, wantStatus: http.StatusUnprocessableEntity},
		{name: "quantity too large", err: service.ErrQuantityTooLarge, wantStatus: http.StatusUnprocessableEntity},
		{name: "insufficient stock", err: repository.ErrInsufficientStock, wantStatus: http.StatusConflict},
		{name: "promocode exhausted", err: repository.ErrPromocodeExhausted, wantStatus: http.StatusConflict},
		{name: "concurrency conflict", err: repository.ErrConcurrencyConflict, wantStatus: http.StatusConflict},
		{name: "storage unavailable", err: repository.ErrStorageUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "unknown error", err: errors.New("pg driver exploded"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondWithDomainError(rec, zap.NewNop(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body.Error.Code != http.StatusText(tt.wantStatus) {
				t.Errorf("code = %q, want %q", body.Error.Code, http.StatusText(tt.wantStatus))
			}
			if body.Error.Message == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestRespondWithDomainError_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("failed to reserve stock for product 7: %w", repository.ErrInsufficientStock)

	rec := httptest.NewRecorder()
	RespondWithDomainError(rec, zap.NewNop(), wrapped)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for a wrapped sentinel", rec.Code)
	}
}

func TestRespondWithDomainError_HidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithDomainError(rec, zap.NewNop(), errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error details leaked into the response body")
	}
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
