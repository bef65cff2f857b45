package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/rbac"
)

// ErrRoleInUse blocks deletion of a role that users still hold.
var ErrRoleInUse = errors.New("roles: role is still assigned to users")

// Service orchestrates role management.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Create inserts a new role after validating its name.
func (s *Service) Create(ctx context.Context, name string, hierarchyLevel int32, isDefault bool) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("roles: role name required")
	}
	return s.repo.InsertRole(ctx, Role{Name: name, HierarchyLevel: hierarchyLevel, IsDefault: isDefault})
}

// Update edits an existing role.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name string, hierarchyLevel int32, isDefault bool) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("roles: role name required")
	}
	return s.repo.UpdateRole(ctx, Role{ID: id, Name: name, HierarchyLevel: hierarchyLevel, IsDefault: isDefault})
}

// Delete removes a role. Deletion is refused while any user still holds the
// role; users are never cascade-deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.repo.UserCountForRole(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.IsRoleDeletable(count) {
		return fmt.Errorf("%w: %d users", ErrRoleInUse, count)
	}
	return s.repo.DeleteRole(ctx, id)
}
