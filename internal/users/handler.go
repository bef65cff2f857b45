package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/platform/httpx"
	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.profile)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(rbac.PermAccessAdminPanel))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAuthenticated())
		// The hierarchy and permission checks for these two live in the
		// service, which also needs the actor's identity.
		r.Put("/{id}/ban", h.setBanned)
		r.Put("/{id}/assign-role", h.assignRole)
		r.Put("/bio", h.updateBio)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, all)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be a uuid")
		return
	}
	profile, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("get profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type banForm struct {
	Ban bool `json:"ban"`
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request) {
	actorID, _ := shared.CurrentUserID(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be a uuid")
		return
	}
	var form banForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	user, err := h.service.SetBanned(r.Context(), actorID, targetID, form.Ban)
	if err != nil {
		h.respondModerationError(w, err, "ban user")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"userProfile": user})
}

type assignRoleForm struct {
	RoleID uuid.UUID `json:"roleId"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := shared.CurrentUserID(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user id must be a uuid")
		return
	}
	var form assignRoleForm
	if err := httpx.DecodeJSON(r, &form); err != nil || form.RoleID == uuid.Nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roleId must be a uuid")
		return
	}
	user, err := h.service.AssignRole(r.Context(), actorID, targetID, form.RoleID)
	if err != nil {
		h.respondModerationError(w, err, "assign role")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type bioForm struct {
	Bio string `json:"bio" validate:"max=2000"`
}

func (h *Handler) updateBio(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	var form bioForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateBio(r.Context(), userID, form.Bio); err != nil {
		h.logger.Error("update bio", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "bio updated"})
}

func (h *Handler) respondModerationError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
