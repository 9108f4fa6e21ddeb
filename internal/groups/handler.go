package groups

import (
	"fmt"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/warden-app/warden/internal/platform/httpx"
	"github.com/warden-app/warden/internal/rbac"
)

const moduleName = "Groups"

// Handler serves group management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers group routes behind the policy gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(moduleName, rbac.ActionRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(moduleName, rbac.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(moduleName, rbac.ActionUpdate))
		r.Put("/{id}", h.update)
		r.Post("/{id}/users", h.attachUsers)
		r.Delete("/{id}/users/{userID}", h.detachUser)
		r.Post("/{id}/roles", h.attachRoles)
		r.Delete("/{id}/roles/{roleID}", h.detachRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(moduleName, rbac.ActionDelete))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": details})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"group": detail})
}

type groupRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Group created successfully",
		"group":   detail,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req groupRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Update(r.Context(), id, req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Group updated successfully",
		"group":   detail,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Group deleted successfully"})
}

type attachUsersRequest struct {
	UserIDs []int64 `json:"userIds" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) attachUsers(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req attachUsersRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	added, detail, err := h.service.AttachUsers(r.Context(), id, req.UserIDs)
	if err != nil {
		rbac.RespondAttachError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("%d users assigned to group successfully", added),
		"addedCount": added,
		"group":      detail,
	})
}

func (h *Handler) detachUser(w http.ResponseWriter, r *http.Request) {
	groupID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, err := httpx.PathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DetachUser(r.Context(), groupID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User removed from group successfully"})
}

type attachRolesRequest struct {
	RoleIDs []int64 `json:"roleIds" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) attachRoles(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req attachRolesRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	added, detail, err := h.service.AttachRoles(r.Context(), id, req.RoleIDs)
	if err != nil {
		rbac.RespondAttachError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("%d roles assigned to group successfully", added),
		"addedCount": added,
		"group":      detail,
	})
}

func (h *Handler) detachRole(w http.ResponseWriter, r *http.Request) {
	groupID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := httpx.PathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DetachRole(r.Context(), groupID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Role removed from group successfully"})
}

