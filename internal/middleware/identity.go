package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDHeader carries the caller identity assigned by the bot gateway.
// The gateway sits in front of this service and is trusted; the service
// itself does not authenticate end users.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware extracts the user id from the gateway header and puts
// it on the request context. Requests without a valid id are rejected.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			respondWithError(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			respondWithError(w, http.StatusUnauthorized, "invalid user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the user ID from the request context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
