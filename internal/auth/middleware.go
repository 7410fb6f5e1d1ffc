package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware returns an HTTP middleware that authenticates the caller via a
// bearer token and stores the resulting Identity in the request context.
// Requests without a bearer token proceed unauthenticated (Identity is nil);
// a bearer token that fails verification is rejected with 401. Routes that
// require authentication must chain RequireAuth or RequireRole after this
// middleware.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") || strings.HasPrefix(authHeader, "bearer ") {
				raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(authHeader, "Bearer "), "bearer "))

				id, err := tokens.Verify(raw)
				if err != nil {
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
					return
				}

				ctx := NewContext(r.Context(), id)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
