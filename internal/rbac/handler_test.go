package rbac_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
	_ "github.com/palaver-board/palaver/testing"
)

type fakeAdminStore struct {
	perms    []rbac.Permission
	pairs    []rbac.RolePermission
	replaced [][]rbac.RolePermission
}

func (f *fakeAdminStore) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return f.perms, nil
}

func (f *fakeAdminStore) ListRolePermissions(ctx context.Context) ([]rbac.RolePermission, error) {
	return f.pairs, nil
}

func (f *fakeAdminStore) ReplaceRolePermissions(ctx context.Context, desired []rbac.RolePermission) error {
	f.replaced = append(f.replaced, desired)
	f.pairs = desired
	return nil
}

type fakeSource struct {
	granted map[uuid.UUID]rbac.PermissionSet
}

func (f *fakeSource) PermissionsFor(ctx context.Context, userID uuid.UUID) (rbac.PermissionSet, error) {
	return f.granted[userID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionRequest(t *testing.T, method, target string, body string, userID uuid.UUID) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if userID != uuid.Nil {
		sess.SetUser(userID.String())
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func newRouter(store *fakeAdminStore, src *fakeSource) chi.Router {
	h := rbac.NewHandler(testLogger(), store, rbac.Middleware{Source: src})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestListPermissionsRequiresAdminPanel(t *testing.T) {
	userID := uuid.New()
	store := &fakeAdminStore{perms: []rbac.Permission{{ID: uuid.New(), Name: rbac.PermLockThread}}}
	src := &fakeSource{granted: map[uuid.UUID]rbac.PermissionSet{}}
	router := newRouter(store, src)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, sessionRequest(t, http.MethodGet, "/permissions", "", userID))
	assert.Equal(t, http.StatusForbidden, res.Code)

	src.granted[userID] = rbac.NewPermissionSet(rbac.PermAccessAdminPanel)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, sessionRequest(t, http.MethodGet, "/permissions", "", userID))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), rbac.PermLockThread)
}

func TestAnonymousIsUnauthorized(t *testing.T) {
	router := newRouter(&fakeAdminStore{}, &fakeSource{granted: map[uuid.UUID]rbac.PermissionSet{}})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, sessionRequest(t, http.MethodGet, "/permissions", "", uuid.Nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestReplaceRolePermissionsNoChange(t *testing.T) {
	userID := uuid.New()
	roleID, permID := uuid.New(), uuid.New()
	store := &fakeAdminStore{pairs: []rbac.RolePermission{{RoleID: roleID, PermissionID: permID}}}
	src := &fakeSource{granted: map[uuid.UUID]rbac.PermissionSet{
		userID: rbac.NewPermissionSet(rbac.PermModifyRolePermissions),
	}}
	router := newRouter(store, src)

	body := fmt.Sprintf(`[{"role_id":%q,"permission_id":%q}]`, roleID, permID)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, sessionRequest(t, http.MethodPost, "/role-permissions", body, userID))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "No changes were detected.")
	assert.Empty(t, store.replaced, "a no-op update must not touch the store")
}

func TestReplaceRolePermissionsApplied(t *testing.T) {
	userID := uuid.New()
	roleID, oldPerm, newPerm := uuid.New(), uuid.New(), uuid.New()
	store := &fakeAdminStore{pairs: []rbac.RolePermission{{RoleID: roleID, PermissionID: oldPerm}}}
	src := &fakeSource{granted: map[uuid.UUID]rbac.PermissionSet{
		userID: rbac.NewPermissionSet(rbac.PermModifyRolePermissions),
	}}
	router := newRouter(store, src)

	body := fmt.Sprintf(`[{"role_id":%q,"permission_id":%q}]`, roleID, newPerm)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, sessionRequest(t, http.MethodPost, "/role-permissions", body, userID))

	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, store.replaced, 1)

	var updated []rbac.RolePermission
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &updated))
	require.Len(t, updated, 1)
	assert.Equal(t, newPerm, updated[0].PermissionID)
}
