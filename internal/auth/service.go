package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/palaver-board/palaver/internal/roles"
	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/jobs"
)

// Sentinel errors returned by the auth service.
var (
	ErrUsernameTaken = errors.New("auth: username already taken")
	ErrEmailTaken    = errors.New("auth: email already registered")
	ErrBanned        = errors.New("auth: account banned")
	ErrNotConfirmed  = errors.New("auth: account not confirmed")
	ErrTokenInvalid  = errors.New("auth: token invalid or expired")
)

const (
	resetTokenTTL       = 2 * time.Hour
	emailChangeTokenTTL = time.Hour
)

// RoleSource resolves the role assigned to fresh registrations.
type RoleSource interface {
	DefaultRole(ctx context.Context) (*roles.Role, error)
}

// EmailQueue enqueues outbound email jobs.
type EmailQueue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Service wraps registration and authentication business rules.
type Service struct {
	repo    Repository
	roles   RoleSource
	emails  EmailQueue
	baseURL string
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, roleSource RoleSource, emails EmailQueue, baseURL string, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roleSource, emails: emails, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an unconfirmed account on the default role and queues
// the confirmation email. Usernames are normalized to NFC so visually
// identical names cannot coexist.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	username := norm.NFC.String(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.DefaultRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default role: %w", err)
	}
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	account, err := s.repo.CreateAccount(ctx, CreateAccountParams{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       role.ID,
		ConfirmToken: token,
	})
	if err != nil {
		return nil, err
	}

	s.sendEmail(ctx, account.Email, "Confirm your account",
		fmt.Sprintf("Welcome, %s!\n\nConfirm your account by visiting:\n%s/auth/confirm?token=%s\n",
			account.Username, s.baseURL, token))
	return account, nil
}

// Confirm activates the account holding the given confirmation token.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenInvalid
	}
	if err := s.repo.ConfirmByToken(ctx, token); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	return nil
}

// Authenticate validates login/password credentials. Banned and
// unconfirmed accounts are rejected with distinct errors so callers can
// show an actionable message.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*Account, error) {
	account, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if account.Banned {
		return nil, ErrBanned
	}
	if !account.IsConfirmed {
		return nil, ErrNotConfirmed
	}
	if err := s.repo.TouchLastLogin(ctx, account.ID); err != nil && s.logger != nil {
		s.logger.Warn("touch last login", slog.Any("error", err))
	}
	return account, nil
}

// ForgotPassword issues a reset token when the email matches an account.
// It reports success either way so the endpoint cannot be used to probe
// which addresses are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.repo.FindByLogin(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, account.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}
	s.sendEmail(ctx, account.Email, "Reset your password",
		fmt.Sprintf("A password reset was requested for %s.\n\nReset it here:\n%s/auth/reset-password?token=%s\n\nThe link expires in two hours.",
			account.Username, s.baseURL, token))
	return nil
}

// ResetPassword sets a new password for the account holding an unexpired
// reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	account, err := s.repo.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, account.ID, string(hash))
}

// RequestEmailChange stages a new address for the account and mails a
// confirmation link to that address. The stored email only changes once
// the link is followed, so a typo cannot lock the user out.
func (s *Service) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetEmailChangeToken(ctx, account.ID, newEmail, token, time.Now().Add(emailChangeTokenTTL)); err != nil {
		return err
	}
	s.sendEmail(ctx, newEmail, "Confirm your email change",
		fmt.Sprintf("Hi %s,\n\nConfirm your new address by visiting:\n%s/auth/change-email/confirm?token=%s\n\nThe link expires in one hour.",
			account.Username, s.baseURL, token))
	return nil
}

// ConfirmEmailChange applies the staged address for an unexpired token.
func (s *Service) ConfirmEmailChange(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenInvalid
	}
	if err := s.repo.ApplyEmailChangeByToken(ctx, token); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	return nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, account *Account, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, account.ID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) {
	if s.emails == nil {
		return
	}
	if _, err := s.emails.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body}); err != nil && s.logger != nil {
		s.logger.Warn("enqueue email", slog.String("to", to), slog.Any("error", err))
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
