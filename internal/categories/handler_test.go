package categories_test

import (
	"context"
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

	"github.com/palaver-board/palaver/internal/categories"
	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

type fakeRepo struct {
	items map[uuid.UUID]*categories.Category
}

func (f *fakeRepo) ListCategories(ctx context.Context) ([]categories.Category, error) {
	out := make([]categories.Category, 0, len(f.items))
	for _, c := range f.items {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRepo) GetCategory(ctx context.Context, id uuid.UUID) (*categories.Category, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeRepo) InsertCategory(ctx context.Context, c *categories.Category) error {
	c.CreatedAt = time.Now()
	copied := *c
	f.items[c.ID] = &copied
	return nil
}

func (f *fakeRepo) UpdateCategory(ctx context.Context, c *categories.Category) error {
	if _, ok := f.items[c.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *c
	f.items[c.ID] = &copied
	return nil
}

func (f *fakeRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeSource struct {
	granted rbac.PermissionSet
}

func (f *fakeSource) PermissionsFor(ctx context.Context, userID uuid.UUID) (rbac.PermissionSet, error) {
	return f.granted, nil
}

func newRouter(repo *fakeRepo, granted rbac.PermissionSet) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := categories.NewHandler(logger, categories.NewService(repo), rbac.Middleware{Source: &fakeSource{granted: granted}})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func sessionRequest(t *testing.T, method, target, body string, userID uuid.UUID) *http.Request {
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

func TestListIsPublic(t *testing.T) {
	repo := &fakeRepo{items: map[uuid.UUID]*categories.Category{}}
	router := newRouter(repo, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRequiresPermission(t *testing.T) {
	repo := &fakeRepo{items: map[uuid.UUID]*categories.Category{}}
	body := `{"name":"General","description":"Anything goes","position":1}`

	router := newRouter(repo, rbac.NewPermissionSet())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, sessionRequest(t, http.MethodPost, "/", body, uuid.New()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, repo.items)

	router = newRouter(repo, rbac.NewPermissionSet(rbac.PermCreateCategory))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, sessionRequest(t, http.MethodPost, "/", body, uuid.New()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, repo.items, 1)
}

func TestDeleteMissingCategory(t *testing.T) {
	repo := &fakeRepo{items: map[uuid.UUID]*categories.Category{}}
	router := newRouter(repo, rbac.NewPermissionSet(rbac.PermDeleteCategory))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, sessionRequest(t, http.MethodDelete, "/"+uuid.NewString(), "", uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
