package auth

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
	"github.com/warden-app/warden/internal/shared"
)

// PermissionResolver lists and checks a user's effective permissions.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]rbac.EffectivePermission, error)
	HasPermission(ctx context.Context, userID int64, moduleName, action string) (bool, error)
}

// Handler serves registration, login, and permission introspection.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	tokens   *TokenStore
	resolver PermissionResolver
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenStore, resolver PermissionResolver) *Handler {
	return &Handler{logger: logger, service: service, tokens: tokens, resolver: resolver}
}

// MountRoutes registers auth routes. Registration and login are public;
// everything else requires a valid token.
func (h *Handler) MountRoutes(r chi.Router, authn Middleware) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)
		r.Get("/me/permissions", h.permissions)
		r.Post("/simulate-action", h.simulate)
		r.Post("/logout", h.logout)
	})
}

type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.SignUp(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	token, err := h.issueToken(w, r, user)
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"token":   token,
		"user":    userView{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	token, err := h.issueToken(w, r, *user)
	if err != nil {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    userView{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, user User) (string, error) {
	token, err := h.tokens.Issue(r.Context(), shared.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return "", err
	}
	return token, nil
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	ident, _ := shared.IdentityFromContext(r.Context())
	perms, err := h.resolver.EffectivePermissions(r.Context(), ident.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type simulateRequest struct {
	UserID     *int64 `json:"userId"`
	ModuleName string `json:"moduleName" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=create read update delete"`
}

// simulate answers whether a (target user, module, action) triple lies in
// the resolved permission set. The target defaults to the current user.
func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	ident, _ := shared.IdentityFromContext(r.Context())
	targetID := ident.UserID
	if req.UserID != nil {
		targetID = *req.UserID
	}

	allowed, err := h.resolver.HasPermission(r.Context(), targetID, req.ModuleName, req.Action)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"hasPermission": allowed})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := TokenFromContext(r.Context()); ok {
		if err := h.tokens.Revoke(r.Context(), token); err != nil {
			h.logger.Error("revoke token", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}
