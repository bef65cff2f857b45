package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service loads authorization facts from PostgreSQL and mutates the
// role-permission grants. Evaluation itself stays in the pure functions of
// evaluator.go; the service only supplies their inputs.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// PermissionsFor returns the effective permission set of a user, derived
// from the role the user holds. A roleless user gets an empty set.
func (s *Service) PermissionsFor(ctx context.Context, userID uuid.UUID) (PermissionSet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.name
		FROM users u
		INNER JOIN roles r ON u.role_id = r.id
		INNER JOIN role_permissions rp ON r.id = rp.role_id
		INNER JOIN permissions p ON rp.permission_id = p.id
		WHERE u.id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(PermissionSet)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// HierarchyLevelFor returns the hierarchy level of the user's role, or nil
// when the user has no role. Callers must treat nil as "deny".
func (s *Service) HierarchyLevelFor(ctx context.Context, userID uuid.UUID) (*int32, error) {
	var level int32
	err := s.pool.QueryRow(ctx, `
		SELECT r.hierarchy_level
		FROM users u
		INNER JOIN roles r ON u.role_id = r.id
		WHERE u.id = $1`, userID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &level, nil
}

// ListPermissions returns the seeded permission catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// ListRolePermissions returns every granted (role, permission) pair.
func (s *Service) ListRolePermissions(ctx context.Context) ([]RolePermission, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id, permission_id FROM role_permissions ORDER BY role_id, permission_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs []RolePermission
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID); err != nil {
			return nil, err
		}
		pairs = append(pairs, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ReplaceRolePermissions swaps the full grant table for the desired state in
// one transaction: pairs absent from the desired set are deleted, new pairs
// are inserted, existing pairs are left alone.
func (s *Service) ReplaceRolePermissions(ctx context.Context, desired []RolePermission) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		roleIDs := make([]uuid.UUID, len(desired))
		permIDs := make([]uuid.UUID, len(desired))
		for i, rp := range desired {
			roleIDs[i] = rp.RoleID
			permIDs[i] = rp.PermissionID
		}
		if len(desired) == 0 {
			_, err := tx.Exec(ctx, `DELETE FROM role_permissions`)
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM role_permissions
			WHERE (role_id, permission_id) NOT IN (
				SELECT * FROM UNNEST ($1::uuid[], $2::uuid[]) AS t(role_id, permission_id)
			)`, roleIDs, permIDs); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT * FROM UNNEST ($1::uuid[], $2::uuid[]) AS t(role_id, permission_id)
			ON CONFLICT (role_id, permission_id) DO NOTHING`, roleIDs, permIDs)
		return err
	})
}
