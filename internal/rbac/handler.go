package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/palaver-board/palaver/internal/platform/httpx"
)

// AdminStore is the slice of Service the admin endpoints need.
type AdminStore interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRolePermissions(ctx context.Context) ([]RolePermission, error)
	ReplaceRolePermissions(ctx context.Context, desired []RolePermission) error
}

// Handler exposes the permission catalog and the role-permission grants.
type Handler struct {
	logger *slog.Logger
	store  AdminStore
	mw     Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store AdminStore, mw Middleware) *Handler {
	return &Handler{logger: logger, store: store, mw: mw}
}

// MountRoutes registers admin authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(PermAccessAdminPanel))
		r.Get("/permissions", h.listPermissions)
		r.Get("/role-permissions", h.listRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(PermModifyRolePermissions))
		r.Post("/role-permissions", h.replaceRolePermissions)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.store.ListRolePermissions(r.Context())
	if err != nil {
		h.logger.Error("list role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pairs)
}

func (h *Handler) replaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	var desired []RolePermission
	if err := httpx.DecodeJSON(r, &desired); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "body must be a list of role-permission pairs")
		return
	}

	current, err := h.store.ListRolePermissions(r.Context())
	if err != nil {
		h.logger.Error("load role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if samePairs(current, desired) {
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "No changes were detected."})
		return
	}

	if err := h.store.ReplaceRolePermissions(r.Context(), desired); err != nil {
		h.logger.Error("replace role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.store.ListRolePermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func samePairs(a, b []RolePermission) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(rp RolePermission) string { return rp.RoleID.String() + "/" + rp.PermissionID.String() }
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i] = key(a[i])
		kb[i] = key(b[i])
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}
