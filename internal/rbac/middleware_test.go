package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warden-app/warden/internal/shared"
)

type stubChecker struct {
	allowed bool
	err     error
}

func (s stubChecker) HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error) {
	return s.allowed, s.err
}

func gateRequest(t *testing.T, checker PermissionChecker, authenticated bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	mw := Middleware{Checker: checker}

	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	if authenticated {
		ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: 42})
		req = req.WithContext(ctx)
	}

	res := httptest.NewRecorder()
	mw.Require("Groups", ActionRead)(next).ServeHTTP(res, req)
	return res, reached
}

func TestRequireWithoutIdentity(t *testing.T) {
	res, reached := gateRequest(t, stubChecker{allowed: true}, false)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.False(t, reached)
}

func TestRequireForbidden(t *testing.T) {
	res, reached := gateRequest(t, stubChecker{allowed: false}, true)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, reached)
}

func TestRequireAuthorized(t *testing.T) {
	res, reached := gateRequest(t, stubChecker{allowed: true}, true)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, reached)
}

func TestRequireCheckerError(t *testing.T) {
	res, reached := gateRequest(t, stubChecker{err: errors.New("store down")}, true)
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.False(t, reached)
}
