package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	OperatorContextKey contextKey = "operator"
)

// GetOperatorFromContext retrieves the acting operator from request context
func GetOperatorFromContext(ctx context.Context) string {
	if operator, ok := ctx.Value(OperatorContextKey).(string); ok {
		return operator
	}
	return ""
}

// WithOperator returns a context carrying the acting operator
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, OperatorContextKey, operator)
}

// APIKeyAuth creates middleware for API key authentication
func APIKeyAuth(apiKey, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health endpoints
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			// Only authenticate API routes
			if !strings.HasPrefix(path, "/api") {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, "API key is required.")
				return
			}

			// Constant-time comparison to prevent timing attacks
			if !constantTimeEquals(apiKey, providedKey) {
				writeError(w, http.StatusUnauthorized, "Invalid API key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OperatorIdentity copies the operator header, when present, into the request context
func OperatorIdentity(headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if operator := strings.TrimSpace(r.Header.Get(headerName)); operator != "" {
				r = r.WithContext(WithOperator(r.Context(), operator))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOperator rejects requests that carry no operator identity. Used on
// routes that close conflicts, since every closure records who made it.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetOperatorFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Operator identity is required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
