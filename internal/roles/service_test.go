package roles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/shared"
)

type mockRepository struct {
	roles      map[uuid.UUID]*Role
	userCounts map[uuid.UUID]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:      make(map[uuid.UUID]*Role),
		userCounts: make(map[uuid.UUID]int64),
	}
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockRepository) DefaultRole(ctx context.Context) (*Role, error) {
	for _, r := range m.roles {
		if r.IsDefault {
			copied := *r
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) InsertRole(ctx context.Context, role Role) (*Role, error) {
	if role.IsDefault {
		for _, existing := range m.roles {
			existing.IsDefault = false
		}
	}
	role.ID = uuid.New()
	m.roles[role.ID] = &role
	copied := role
	return &copied, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, role Role) (*Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	if role.IsDefault {
		for id, existing := range m.roles {
			if id != role.ID {
				existing.IsDefault = false
			}
		}
	}
	m.roles[role.ID] = &role
	copied := role
	return &copied, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepository) UserCountForRole(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.userCounts[id], nil
}

func TestCreateRoleRequiresName(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), "   ", 3, false)
	assert.Error(t, err)
}

func TestCreateDefaultRoleClearsPreviousDefault(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	first, err := svc.Create(context.Background(), "member", 10, true)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "newbie", 20, true)
	require.NoError(t, err)

	assert.False(t, repo.roles[first.ID].IsDefault)
	assert.True(t, repo.roles[second.ID].IsDefault)

	def, err := repo.DefaultRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)
}

func TestDeleteRoleRefusedWhileInUse(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	role, err := svc.Create(context.Background(), "moderator", 2, false)
	require.NoError(t, err)
	repo.userCounts[role.ID] = 3

	err = svc.Delete(context.Background(), role.ID)
	assert.ErrorIs(t, err, ErrRoleInUse)
	assert.Contains(t, err.Error(), "3 users")

	repo.userCounts[role.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), role.ID))
	_, err = svc.Get(context.Background(), role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMissingRole(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Update(context.Background(), uuid.New(), "ghost", 1, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
