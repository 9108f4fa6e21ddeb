package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warden-app/warden/internal/auth"
	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
	"github.com/warden-app/warden/internal/shared"
)

type stubRepo struct {
	users  map[string]auth.User
	nextID int64
}

func (s *stubRepo) Create(ctx context.Context, username, email, passwordHash string) (auth.User, error) {
	if _, ok := s.users[email]; ok {
		return auth.User{}, httpx.ErrConflict
	}
	s.nextID++
	user := auth.User{ID: s.nextID, Username: username, Email: email, PasswordHash: passwordHash}
	s.users[email] = user
	return user, nil
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &user, nil
}

type stubResolver struct {
	perms   []rbac.EffectivePermission
	allowed map[int64]bool
}

func (s *stubResolver) EffectivePermissions(ctx context.Context, userID int64) ([]rbac.EffectivePermission, error) {
	return s.perms, nil
}

func (s *stubResolver) HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error) {
	return s.allowed[userID], nil
}

func newAuthRouter(t *testing.T, repo auth.Repository, resolver auth.PermissionResolver) (chi.Router, *auth.TokenStore) {
	t.Helper()
	tokens, _ := newTokenStore(t, time.Hour)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), tokens, resolver)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r, auth.Middleware{Tokens: tokens})
	})
	return r, tokens
}

func postJSON(t *testing.T, router http.Handler, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRegisterIssuesToken(t *testing.T) {
	router, tokens := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, &stubResolver{})

	res := postJSON(t, router, "/auth/register",
		`{"username":"auditor","email":"auditor@example.com","password":"correcthorse"}`, "")
	require.Equal(t, http.StatusCreated, res.Code)

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	require.Equal(t, "auditor", body.User.Username)

	ident, err := tokens.Lookup(context.Background(), body.Token)
	require.NoError(t, err)
	require.Equal(t, body.User.ID, ident.UserID)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, &stubResolver{})

	res := postJSON(t, router, "/auth/register",
		`{"username":"auditor","email":"auditor@example.com","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginWithWrongPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{users: map[string]auth.User{
		"auditor@example.com": {ID: 1, Username: "auditor", Email: "auditor@example.com", PasswordHash: string(hashed)},
	}}
	router, _ := newAuthRouter(t, repo, &stubResolver{})

	res := postJSON(t, router, "/auth/login",
		`{"email":"auditor@example.com","password":"wrong"}`, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{users: map[string]auth.User{
		"auditor@example.com": {ID: 1, Username: "auditor", Email: "auditor@example.com", PasswordHash: string(hashed)},
	}}
	router, _ := newAuthRouter(t, repo, &stubResolver{})

	res := postJSON(t, router, "/auth/login",
		`{"email":"auditor@example.com","password":"correcthorse"}`, "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"token"`)
}

func TestPermissionsRequiresToken(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, &stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me/permissions", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestPermissionsListsResolvedSet(t *testing.T) {
	resolver := &stubResolver{perms: []rbac.EffectivePermission{
		{PermissionID: 9, ModuleID: 5, ModuleName: "Billing", Action: rbac.ActionRead},
	}}
	router, tokens := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, resolver)

	token, err := tokens.Issue(context.Background(), shared.Identity{UserID: 42})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me/permissions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"moduleName":"Billing"`)
}

func TestSimulateActionDefaultsToCurrentUser(t *testing.T) {
	resolver := &stubResolver{allowed: map[int64]bool{42: true}}
	router, tokens := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, resolver)

	token, err := tokens.Issue(context.Background(), shared.Identity{UserID: 42})
	require.NoError(t, err)

	res := postJSON(t, router, "/auth/simulate-action",
		`{"moduleName":"Billing","action":"read"}`, token)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"hasPermission":true`)
}

func TestSimulateActionForTargetUser(t *testing.T) {
	resolver := &stubResolver{allowed: map[int64]bool{42: true}}
	router, tokens := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, resolver)

	token, err := tokens.Issue(context.Background(), shared.Identity{UserID: 1})
	require.NoError(t, err)

	res := postJSON(t, router, "/auth/simulate-action",
		`{"userId":42,"moduleName":"Billing","action":"read"}`, token)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"hasPermission":true`)

	res = postJSON(t, router, "/auth/simulate-action",
		`{"userId":7,"moduleName":"Billing","action":"read"}`, token)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"hasPermission":false`)
}

func TestLogoutRevokesToken(t *testing.T) {
	router, tokens := newAuthRouter(t, &stubRepo{users: map[string]auth.User{}}, &stubResolver{})

	token, err := tokens.Issue(context.Background(), shared.Identity{UserID: 1})
	require.NoError(t, err)

	res := postJSON(t, router, "/auth/logout", "", token)
	require.Equal(t, http.StatusOK, res.Code)

	_, err = tokens.Lookup(context.Background(), token)
	require.ErrorIs(t, err, httpx.ErrUnauthenticated)
}
