package mail

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

// Handler wires HTTP endpoints for private messaging. Every route
// requires an authenticated session.
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

// MountRoutes registers mail routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireAuthenticated())
	r.Post("/", h.send)
	r.Get("/received", h.received)
	r.Get("/sent", h.sent)
	r.Get("/unread-count", h.unreadCount)
	r.Put("/{id}/read", h.markRead)
	r.Delete("/{id}", h.delete)
}

type sendForm struct {
	Recipient string `json:"recipient" validate:"required"`
	Subject   string `json:"subject" validate:"required,max=60"`
	Body      string `json:"body" validate:"required,max=8000"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	var form sendForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Send(r.Context(), userID, form.Recipient, form.Subject, form.Body)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecipientUnknown):
			httpx.Problem(w, http.StatusNotFound, "Unknown Recipient", "no user with that name exists")
		case errors.Is(err, ErrSelfMessage):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Recipient", "you cannot send a message to yourself")
		default:
			h.logger.Error("send message", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"message": m})
}

func (h *Handler) received(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	items, err := h.service.Received(r.Context(), userID)
	if err != nil {
		h.logger.Error("list received", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (h *Handler) sent(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	items, err := h.service.Sent(r.Context(), userID)
	if err != nil {
		h.logger.Error("list sent", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	n, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("unread count", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.messageID(w, r)
	if !ok {
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		h.respondErr(w, "mark read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Marked as read."})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.messageID(w, r)
	if !ok {
		return
	}
	userID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.respondErr(w, "delete message", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Message deleted."})
}

func (h *Handler) messageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "message id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "message not found")
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
