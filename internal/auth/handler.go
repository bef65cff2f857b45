package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/palaver-board/palaver/internal/platform/httpx"
	"github.com/palaver-board/palaver/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Get("/confirm", h.handleConfirm)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)
	r.Post("/change-email", h.handleChangeEmail)
	r.Get("/change-email/confirm", h.handleConfirmEmailChange)
}

type registerForm struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsConfirmed bool   `json:"isConfirmed"`
}

func toAccountResponse(a *Account) accountResponse {
	return accountResponse{
		ID:          a.ID.String(),
		Username:    a.Username,
		Email:       a.Email,
		IsConfirmed: a.IsConfirmed,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	account, err := h.service.Register(r.Context(), RegisterInput(form))
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			httpx.Problem(w, http.StatusConflict, "Already Registered", "that username is already taken")
		case errors.Is(err, ErrEmailTaken):
			httpx.Problem(w, http.StatusConflict, "Already Registered", "that email address is already registered")
		default:
			h.logger.Error("register", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": toAccountResponse(account)})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Confirm(r.Context(), r.URL.Query().Get("token")); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Token", "the confirmation link is invalid or was already used")
			return
		}
		h.logger.Error("confirm", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Account confirmed. You can log in now."})
}

type loginForm struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	account, err := h.service.Authenticate(r.Context(), form.Login, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBanned):
			httpx.Problem(w, http.StatusForbidden, "Account Banned", "this account has been banned")
		case errors.Is(err, ErrNotConfirmed):
			httpx.Problem(w, http.StatusForbidden, "Not Confirmed", "confirm your account before logging in")
		default:
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "login or password is incorrect")
		}
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(account.ID.String())
	if sess.ID != "" {
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, account, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toAccountResponse(account)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

type forgotForm struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var form forgotForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	if err := h.service.ForgotPassword(r.Context(), form.Email); err != nil {
		h.logger.Error("forgot password", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"message": "If the address is registered, a reset link is on its way."})
}

type resetForm struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var form resetForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	if err := h.service.ResetPassword(r.Context(), form.Token, form.Password); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Token", "the reset link is invalid or has expired")
			return
		}
		h.logger.Error("reset password", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password updated. You can log in now."})
}

type changeEmailForm struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "log in to change your email address")
		return
	}
	var form changeEmailForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	if err := h.service.RequestEmailChange(r.Context(), userID, form.Email); err != nil {
		h.logger.Error("change email", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"message": "Confirmation email sent to the new address."})
}

func (h *Handler) handleConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConfirmEmailChange(r.Context(), r.URL.Query().Get("token")); err != nil {
		switch {
		case errors.Is(err, ErrTokenInvalid):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Token", "the email change link is invalid or has expired")
		case errors.Is(err, ErrEmailTaken):
			httpx.Problem(w, http.StatusConflict, "Already Registered", "that email address is already registered")
		default:
			h.logger.Error("confirm email change", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Email address updated."})
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Error()
	}
	return "validation failed"
}
