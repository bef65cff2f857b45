package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for users.
type Repository interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
	SetRole(ctx context.Context, id uuid.UUID, roleID uuid.UUID) error
	SetBio(ctx context.Context, id uuid.UUID, bio string) error
	SetAvatarPath(ctx context.Context, id uuid.UUID, path string) error
	PostCount(ctx context.Context, id uuid.UUID) (int64, error)
	RoleName(ctx context.Context, id uuid.UUID) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, role_id, banned, is_confirmed, COALESCE(bio, ''), COALESCE(avatar_path, ''), created_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.RoleID, &user.Banned, &user.IsConfirmed, &user.Bio, &user.AvatarPath, &user.CreatedAt, &user.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by id.
func (r *PGRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserIDByUsername resolves a username to an id.
func (r *PGRepository) GetUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, shared.ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// SetBanned updates the ban flag.
func (r *PGRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	return r.exec(ctx, `UPDATE users SET banned = $2 WHERE id = $1`, id, banned)
}

// SetRole reassigns the user's role.
func (r *PGRepository) SetRole(ctx context.Context, id uuid.UUID, roleID uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET role_id = $2 WHERE id = $1`, id, roleID)
}

// SetBio updates the profile bio.
func (r *PGRepository) SetBio(ctx context.Context, id uuid.UUID, bio string) error {
	return r.exec(ctx, `UPDATE users SET bio = $2 WHERE id = $1`, id, bio)
}

// SetAvatarPath updates the stored avatar location.
func (r *PGRepository) SetAvatarPath(ctx context.Context, id uuid.UUID, path string) error {
	return r.exec(ctx, `UPDATE users SET avatar_path = $2 WHERE id = $1`, id, path)
}

// PostCount counts the posts authored by a user.
func (r *PGRepository) PostCount(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1`, id).Scan(&count)
	return count, err
}

// RoleName returns the name of the user's role, empty when roleless.
func (r *PGRepository) RoleName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT r.name FROM users u
		INNER JOIN roles r ON u.role_id = r.id
		WHERE u.id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

func (r *PGRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
