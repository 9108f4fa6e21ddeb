package rbac

import (
	"context"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/shared"
)

// PermissionChecker answers the targeted permission-check query.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error)
}

// Middleware is the policy gate guarding protected handlers. It runs after
// authentication and terminates the request before the guarded handler can
// cause any side effect.
type Middleware struct {
	Checker PermissionChecker
	Logger  *slog.Logger
}

// Require ensures the current user holds the (module, action) permission.
func (m Middleware) Require(moduleName, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "access token required")
				return
			}
			allowed, err := m.Checker.HasPermission(r.Context(), ident.UserID, moduleName, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("permission check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden",
					fmt.Sprintf("insufficient permissions: %s on %s", action, moduleName))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
