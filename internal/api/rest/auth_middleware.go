package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/bidhaus/auction-backend/internal/infrastructure/auth"
)

// TokenValidator validates an API token and returns its claims
type TokenValidator interface {
	ValidateToken(token string) (*auth.TokenClaims, error)
}

// AuthMiddleware requires a valid Bearer token and stores the caller's
// identity in the request context
func AuthMiddleware(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code:    "MISSING_TOKEN",
					Message: "authorization header is required",
				}})
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code:    "INVALID_AUTH_SCHEME",
					Message: "authorization header must use the Bearer scheme",
				}})
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code:    "INVALID_TOKEN",
					Message: "token is invalid or expired",
				}})
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
