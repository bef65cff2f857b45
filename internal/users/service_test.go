package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

type mockRepository struct {
	users      map[uuid.UUID]*User
	postCounts map[uuid.UUID]int64
	roleNames  map[uuid.UUID]string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:      make(map[uuid.UUID]*User),
		postCounts: make(map[uuid.UUID]int64),
		roleNames:  make(map[uuid.UUID]string),
	}
}

func (m *mockRepository) addUser() *User {
	u := &User{ID: uuid.New(), Username: "user-" + uuid.NewString()[:8]}
	m.users[u.ID] = u
	return u
}

func (m *mockRepository) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockRepository) GetUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return uuid.Nil, shared.ErrNotFound
}

func (m *mockRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Banned = banned
	return nil
}

func (m *mockRepository) SetRole(ctx context.Context, id uuid.UUID, roleID uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.RoleID = &roleID
	return nil
}

func (m *mockRepository) SetBio(ctx context.Context, id uuid.UUID, bio string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Bio = bio
	return nil
}

func (m *mockRepository) SetAvatarPath(ctx context.Context, id uuid.UUID, path string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.AvatarPath = path
	return nil
}

func (m *mockRepository) PostCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.postCounts[id], nil
}

func (m *mockRepository) RoleName(ctx context.Context, id uuid.UUID) (string, error) {
	return m.roleNames[id], nil
}

type fakeFacts struct {
	granted map[uuid.UUID]rbac.PermissionSet
	levels  map[uuid.UUID]*int32
}

func (f *fakeFacts) PermissionsFor(ctx context.Context, userID uuid.UUID) (rbac.PermissionSet, error) {
	return f.granted[userID], nil
}

func (f *fakeFacts) HierarchyLevelFor(ctx context.Context, userID uuid.UUID) (*int32, error) {
	return f.levels[userID], nil
}

func level(v int32) *int32 { return &v }

func TestBanRequiresHierarchy(t *testing.T) {
	repo := newMockRepository()
	actor := repo.addUser()
	target := repo.addUser()

	facts := &fakeFacts{
		granted: map[uuid.UUID]rbac.PermissionSet{
			actor.ID: rbac.NewPermissionSet(rbac.PermBanUserLowerRole),
		},
		levels: map[uuid.UUID]*int32{
			actor.ID:  level(1),
			target.ID: level(5),
		},
	}
	svc := NewService(repo, facts, nil, nil)

	banned, err := svc.SetBanned(context.Background(), actor.ID, target.ID, true)
	require.NoError(t, err)
	assert.True(t, banned.Banned)

	// Flip the hierarchy: the target now outranks the actor.
	facts.levels[actor.ID] = level(5)
	facts.levels[target.ID] = level(1)
	_, err = svc.SetBanned(context.Background(), actor.ID, target.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, repo.users[target.ID].Banned, "denied action must leave state untouched")
}

func TestBanDeniedWithoutPermission(t *testing.T) {
	repo := newMockRepository()
	actor := repo.addUser()
	target := repo.addUser()

	facts := &fakeFacts{
		granted: map[uuid.UUID]rbac.PermissionSet{},
		levels: map[uuid.UUID]*int32{
			actor.ID:  level(1),
			target.ID: level(5),
		},
	}
	svc := NewService(repo, facts, nil, nil)

	_, err := svc.SetBanned(context.Background(), actor.ID, target.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestBanDeniedForRolelessTarget(t *testing.T) {
	repo := newMockRepository()
	actor := repo.addUser()
	target := repo.addUser()

	facts := &fakeFacts{
		granted: map[uuid.UUID]rbac.PermissionSet{
			actor.ID: rbac.NewPermissionSet(rbac.PermBanUserLowerRole),
		},
		levels: map[uuid.UUID]*int32{
			actor.ID: level(1),
			// target has no role, so no hierarchy level.
		},
	}
	svc := NewService(repo, facts, nil, nil)

	_, err := svc.SetBanned(context.Background(), actor.ID, target.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAssignRole(t *testing.T) {
	repo := newMockRepository()
	actor := repo.addUser()
	target := repo.addUser()
	roleID := uuid.New()

	facts := &fakeFacts{granted: map[uuid.UUID]rbac.PermissionSet{}}
	svc := NewService(repo, facts, nil, nil)

	_, err := svc.AssignRole(context.Background(), actor.ID, target.ID, roleID)
	assert.ErrorIs(t, err, ErrForbidden)

	facts.granted[actor.ID] = rbac.NewPermissionSet(rbac.PermAssignRoles)
	updated, err := svc.AssignRole(context.Background(), actor.ID, target.ID, roleID)
	require.NoError(t, err)
	require.NotNil(t, updated.RoleID)
	assert.Equal(t, roleID, *updated.RoleID)
}

func TestGetProfile(t *testing.T) {
	repo := newMockRepository()
	user := repo.addUser()
	repo.postCounts[user.ID] = 12
	repo.roleNames[user.ID] = "moderator"

	svc := NewService(repo, &fakeFacts{}, nil, nil)
	profile, err := svc.GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), profile.PostCount)
	assert.Equal(t, "moderator", profile.RoleName)

	_, err = svc.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
