package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/platform/db"
	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for roles.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*Role, error)
	InsertRole(ctx context.Context, role Role) (*Role, error)
	UpdateRole(ctx context.Context, role Role) (*Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	UserCountForRole(ctx context.Context, id uuid.UUID) (int64, error)
	DefaultRole(ctx context.Context) (*Role, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRoles returns all roles ordered by hierarchy.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, hierarchy_level, is_default, created_at FROM roles ORDER BY hierarchy_level, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.HierarchyLevel, &role.IsDefault, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, hierarchy_level, is_default, created_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.HierarchyLevel, &role.IsDefault, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// DefaultRole returns the role flagged as default, or ErrNotFound when the
// flag is held by nobody.
func (r *PGRepository) DefaultRole(ctx context.Context) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, hierarchy_level, is_default, created_at FROM roles WHERE is_default = TRUE`).
		Scan(&role.ID, &role.Name, &role.HierarchyLevel, &role.IsDefault, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// InsertRole persists a new role. When the role claims the default flag the
// previous holder is cleared inside the same transaction, so there is no
// window without (or with two) default roles.
func (r *PGRepository) InsertRole(ctx context.Context, role Role) (*Role, error) {
	var inserted Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if role.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = FALSE WHERE is_default = TRUE`); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO roles (name, hierarchy_level, is_default)
			VALUES ($1, $2, $3)
			RETURNING id, name, hierarchy_level, is_default, created_at`,
			role.Name, role.HierarchyLevel, role.IsDefault).
			Scan(&inserted.ID, &inserted.Name, &inserted.HierarchyLevel, &inserted.IsDefault, &inserted.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// UpdateRole updates name, hierarchy level and default flag, clearing a
// previous default holder in the same transaction.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (*Role, error) {
	var updated Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if role.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = FALSE WHERE is_default = TRUE AND id <> $1`, role.ID); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx, `
			UPDATE roles
			SET name = $2, hierarchy_level = $3, is_default = $4
			WHERE id = $1
			RETURNING id, name, hierarchy_level, is_default, created_at`,
			role.ID, role.Name, role.HierarchyLevel, role.IsDefault).
			Scan(&updated.ID, &updated.Name, &updated.HierarchyLevel, &updated.IsDefault, &updated.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRole removes a role by id.
func (r *PGRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UserCountForRole counts users currently holding the role.
func (r *PGRepository) UserCountForRole(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, id).Scan(&count)
	return count, err
}

var _ Repository = (*PGRepository)(nil)
