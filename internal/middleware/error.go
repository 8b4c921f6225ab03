package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatmart/internal/repository"
	"chatmart/internal/service"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// respondWithError sends a structured error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, message, nil)
}

// respondWithErrorDetails sends a structured error response with additional details
func respondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithError sends a structured error response with the given status
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithError(w, statusCode, message)
}

// RespondWithDomainError maps a domain error to its HTTP status and writes
// the structured error body. Unrecognized errors become 500s with a generic
// message so internals never leak.
func RespondWithDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, message := classifyError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		message = "internal server error"
	}
	respondWithError(w, status, message)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartItemNotFound),
		errors.Is(err, repository.ErrPromocodeNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, repository.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPriceRange),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrEmptySearchQuery),
		errors.Is(err, service.ErrInvalidPromocode):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCartFull),
		errors.Is(err, service.ErrQuantityTooLarge):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrProductUnpurchasable),
		errors.Is(err, repository.ErrPromocodeInactive),
		errors.Is(err, repository.ErrPromocodeExpired),
		errors.Is(err, repository.ErrPromocodeExhausted),
		errors.Is(err, repository.ErrPromocodeAlreadyUsed),
		errors.Is(err, repository.ErrPromocodeBelowMinimum):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrConcurrencyConflict):
		return http.StatusConflict, "please retry the request"
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, ""
	}
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	respondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					respondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
