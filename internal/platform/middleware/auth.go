package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"trustline/pkg/domain"
	"trustline/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims carries the authenticated identity extracted from a token. The
// subject is the address the caller acts as; the contract core never derives
// it any other way.
type JWTClaims struct {
	Address string
}

// RequireAuth validates the bearer token and places the acting identity in
// the request context. Handlers past this middleware may assume
// requestcontext.ActingAs is set.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			addr, err := domain.ParseAddress(claims.Address)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "token subject is not a valid address")
				return
			}

			ctx := requestcontext.WithActingAs(r.Context(), addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}
