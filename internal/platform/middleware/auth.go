package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	jwttoken "crowdvault/internal/jwt_token"
	"crowdvault/pkg/domain"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

type contextKeyAccountID struct{}

// ContextKeyAccountID is exported for use in handler tests.
var ContextKeyAccountID = contextKeyAccountID{}

// GetAccountID retrieves the authenticated account from the context.
func GetAccountID(ctx context.Context) domain.AccountID {
	account, ok := ctx.Value(ContextKeyAccountID).(domain.AccountID)
	if !ok {
		return ""
	}
	return account
}

// RequireAuth validates the bearer token and stashes the caller's account id
// in the request context. Whether that account holds the custodian
// capability is the escrow guard's decision, not the transport layer's.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err.Error(),
					"request_id", requestID,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			account, err := domain.ParseAccountID(claims.AccountID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unusable account id",
					"error", err.Error(),
					"request_id", requestID,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyAccountID, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
