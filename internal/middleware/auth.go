package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/duochat/duochat-server/internal/audit"
	apperrors "github.com/duochat/duochat-server/internal/errors"
	"github.com/duochat/duochat-server/internal/token"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// GetClaims returns the verified room claim for the request, or nil on
// routes that were not wrapped by the auth middleware.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*token.Claims); ok {
		return claims
	}
	return nil
}

type AuthMiddleware struct {
	issuer *token.Issuer
}

func NewAuthMiddleware(issuer *token.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim := extractClaim(r)
		if claim == "" {
			writeError(w, apperrors.Unauthorized("Missing room claim"))
			return
		}

		claims, err := m.issuer.Verify(claim)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventClaimRejected})
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractClaim(r *http.Request) string {
	if claim := r.URL.Query().Get("claim"); claim != "" {
		return claim
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
