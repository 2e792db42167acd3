package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// OperatorFromContext reports whether the request carried a valid operator token.
func OperatorFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(operatorContextKey).(bool)
	return ok
}

// OperatorAuth requires "Authorization: Bearer <token>". An empty token
// disables the check and every request is treated as anonymous.
func OperatorAuth(token string) func(http.Handler) http.Handler {
	want := hashToken(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			got := hashToken(parts[1])
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid operator token")
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hashToken(token string) [sha256.Size]byte {
	return sha256.Sum256([]byte(token))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
