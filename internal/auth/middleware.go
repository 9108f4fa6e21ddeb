package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/shared"
)

type tokenContextKey struct{}

// TokenFromContext returns the raw bearer token carried by the request.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

// Middleware resolves bearer tokens into the request identity.
type Middleware struct {
	Tokens *TokenStore
	Logger *slog.Logger
}

// Authenticate requires a valid bearer token and stores the resolved
// identity in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "access token required")
			return
		}
		ident, err := m.Tokens.Lookup(r.Context(), token)
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("token lookup", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "invalid or expired token")
			return
		}
		ctx := shared.ContextWithIdentity(r.Context(), ident)
		ctx = context.WithValue(ctx, tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
