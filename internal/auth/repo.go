package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// CreateAccountParams collects the columns written at registration.
type CreateAccountParams struct {
	Username     string
	Email        string
	PasswordHash string
	RoleID       uuid.UUID
	ConfirmToken string
}

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)
	ConfirmByToken(ctx context.Context, token string) error
	SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	FindByResetToken(ctx context.Context, token string) (*Account, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetEmailChangeToken(ctx context.Context, userID uuid.UUID, newEmail, token string, expiresAt time.Time) error
	ApplyEmailChangeByToken(ctx context.Context, token string) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, username, email, password_hash, role_id, banned, is_confirmed, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.RoleID, &a.Banned, &a.IsConfirmed, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByID fetches an account by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByLogin fetches an account by username or email.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM users WHERE username = $1 OR LOWER(email) = LOWER($1)`, login)
	return scanAccount(row)
}

// CreateAccount inserts a new unconfirmed user row.
func (r *PGRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, role_id, confirm_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING `+accountColumns,
		uuid.New(), params.Username, params.Email, params.PasswordHash, params.RoleID, params.ConfirmToken)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return nil, ErrUsernameTaken
			case "users_email_key":
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return account, nil
}

// ConfirmByToken flips is_confirmed for the matching token.
func (r *PGRepository) ConfirmByToken(ctx context.Context, token string) error {
	return r.exec(ctx,
		`UPDATE users SET is_confirmed = TRUE, confirm_token = NULL WHERE confirm_token = $1 AND is_confirmed = FALSE`,
		token)
}

// SetResetToken stores a password reset token with its expiry.
func (r *PGRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expires_at = $3 WHERE id = $1`,
		userID, token, expiresAt.UTC())
}

// FindByResetToken fetches the account holding an unexpired reset token.
func (r *PGRepository) FindByResetToken(ctx context.Context, token string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM users WHERE reset_token = $1 AND reset_token_expires_at > NOW()`, token)
	return scanAccount(row)
}

// UpdatePassword replaces the password hash and clears any reset token.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL WHERE id = $1`,
		userID, passwordHash)
}

// SetEmailChangeToken stages a pending email change behind a token.
func (r *PGRepository) SetEmailChangeToken(ctx context.Context, userID uuid.UUID, newEmail, token string, expiresAt time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET new_email = $2, email_change_token = $3, email_change_token_expires_at = $4 WHERE id = $1`,
		userID, newEmail, token, expiresAt.UTC())
}

// ApplyEmailChangeByToken swaps in the staged address for an unexpired
// token and clears the staging columns.
func (r *PGRepository) ApplyEmailChangeByToken(ctx context.Context, token string) error {
	err := r.exec(ctx, `
		UPDATE users
		SET email = new_email, new_email = NULL, email_change_token = NULL, email_change_token_expires_at = NULL
		WHERE email_change_token = $1 AND email_change_token_expires_at > NOW()`,
		token)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// TouchLastLogin records the login timestamp.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session row.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *PGRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
