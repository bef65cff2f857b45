package posts

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

const postsPerPage = 50

// Handler wires HTTP endpoints for posts.
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

// MountRoutes registers post routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(h.authz.RequireAuthenticated()).Post("/", h.create)
	r.With(h.authz.RequireAuthenticated()).Put("/{id}", h.edit)
	r.With(h.authz.RequireAuthenticated()).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(r.URL.Query().Get("thread"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "thread must be a UUID")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	items, err := h.service.ListByThread(r.Context(), threadID, postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		h.logger.Error("list posts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posts": items, "page": page})
}

type createForm struct {
	ThreadID     uuid.UUID  `json:"threadId" validate:"required"`
	Body         string     `json:"body" validate:"required,max=8000"`
	QuotedPostID *uuid.UUID `json:"quotedPostId"`
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
	p, err := h.service.Create(r.Context(), userID, form.ThreadID, form.Body, form.QuotedPostID)
	if err != nil {
		h.respondErr(w, "create post", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"post": p})
}

type editForm struct {
	Body string `json:"body" validate:"required,max=8000"`
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be a UUID")
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	var form editForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.Edit(r.Context(), userID, id, form.Body)
	if err != nil {
		h.respondErr(w, "edit post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"post": p})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "post id must be a UUID")
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.respondErr(w, "delete post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Post deleted."})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "post or thread not found")
	case errors.Is(err, ErrThreadLocked):
		httpx.Problem(w, http.StatusConflict, "Thread Locked", "this thread is locked and does not accept new posts")
	case errors.Is(err, ErrBadQuote):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Quote", "the quoted post does not exist in this thread")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you may only change your own posts")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
