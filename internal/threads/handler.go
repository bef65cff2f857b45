package threads

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/platform/httpx"
	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

const threadsPerPage = 25

// Handler wires HTTP endpoints for threads.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, validator: validator.New()}
}

// MountRoutes registers thread routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(h.authz.RequireAuthenticated()).Post("/", h.create)
	r.With(h.authz.Require(rbac.PermLockThread)).Put("/{id}/lock", h.setLocked)
	r.With(h.authz.Require(rbac.PermPinThread)).Put("/{id}/pin", h.setPinned)
	r.With(h.authz.RequireAuthenticated()).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(r.URL.Query().Get("category"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "category must be a UUID")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	items, err := h.service.ListByCategory(r.Context(), categoryID, threadsPerPage, (page-1)*threadsPerPage)
	if err != nil {
		h.logger.Error("list threads", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threads": items, "page": page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get thread", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"thread": t})
}

type createForm struct {
	CategoryID uuid.UUID `json:"categoryId" validate:"required"`
	Title      string    `json:"title" validate:"required,max=120"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.Create(r.Context(), userID, form.CategoryID, form.Title)
	if err != nil {
		h.respondErr(w, "create thread", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"thread": t})
}

type lockForm struct {
	Locked bool `json:"locked"`
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	var form lockForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	t, err := h.service.SetLocked(r.Context(), userID, id, form.Locked)
	if err != nil {
		h.respondErr(w, "lock thread", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"thread": t})
}

type pinForm struct {
	Pinned bool `json:"pinned"`
}

func (h *Handler) setPinned(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	var form pinForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	t, err := h.service.SetPinned(r.Context(), userID, id, form.Pinned)
	if err != nil {
		h.respondErr(w, "pin thread", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"thread": t})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.respondErr(w, "delete thread", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Thread deleted."})
}

func (h *Handler) threadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "thread id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "thread not found")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you may not delete this thread")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
