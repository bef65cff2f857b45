package posts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/threads"
)

type mockRepository struct {
	posts map[uuid.UUID]*Post
}

func newMockRepository() *mockRepository {
	return &mockRepository{posts: make(map[uuid.UUID]*Post)}
}

func (m *mockRepository) ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]Post, error) {
	var out []Post
	for _, p := range m.posts {
		if p.ThreadID == threadID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) InsertPost(ctx context.Context, p *Post) error {
	copied := *p
	m.posts[p.ID] = &copied
	return nil
}

func (m *mockRepository) UpdateBody(ctx context.Context, id uuid.UUID, body string) error {
	p, ok := m.posts[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Body = body
	return nil
}

func (m *mockRepository) DeletePost(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

type staticThreads struct {
	byID map[uuid.UUID]*threads.Thread
}

func (s staticThreads) Get(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func fixture(locked bool) (*Service, *mockRepository, uuid.UUID) {
	repo := newMockRepository()
	threadID := uuid.New()
	source := staticThreads{byID: map[uuid.UUID]*threads.Thread{
		threadID: {ID: threadID, Locked: locked},
	}}
	return NewService(repo, source), repo, threadID
}

func TestCreateRejectsLockedThread(t *testing.T) {
	svc, repo, threadID := fixture(true)

	_, err := svc.Create(context.Background(), uuid.New(), threadID, "hello", nil)
	assert.ErrorIs(t, err, ErrThreadLocked)
	assert.Empty(t, repo.posts, "the rejected post is never persisted")
}

func TestCreateInOpenThread(t *testing.T) {
	svc, repo, threadID := fixture(false)

	p, err := svc.Create(context.Background(), uuid.New(), threadID, "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Body)
	assert.Len(t, repo.posts, 1)
}

func TestQuoteMustBeInSameThread(t *testing.T) {
	svc, repo, threadID := fixture(false)

	elsewhere := &Post{ID: uuid.New(), ThreadID: uuid.New(), AuthorID: uuid.New(), Body: "other"}
	repo.posts[elsewhere.ID] = elsewhere

	_, err := svc.Create(context.Background(), uuid.New(), threadID, "quoting", &elsewhere.ID)
	assert.ErrorIs(t, err, ErrBadQuote)

	inThread, err := svc.Create(context.Background(), uuid.New(), threadID, "original", nil)
	require.NoError(t, err)
	quoted, err := svc.Create(context.Background(), uuid.New(), threadID, "reply", &inThread.ID)
	require.NoError(t, err)
	require.NotNil(t, quoted.QuotedPostID)
	assert.Equal(t, inThread.ID, *quoted.QuotedPostID)

	missing := uuid.New()
	_, err = svc.Create(context.Background(), uuid.New(), threadID, "ghost quote", &missing)
	assert.ErrorIs(t, err, ErrBadQuote)
}

func TestEditAndDeleteAreAuthorOnly(t *testing.T) {
	svc, _, threadID := fixture(false)
	author := uuid.New()
	stranger := uuid.New()

	p, err := svc.Create(context.Background(), author, threadID, "mine", nil)
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), stranger, p.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := svc.Edit(context.Background(), author, p.ID, "mine, edited")
	require.NoError(t, err)
	assert.Equal(t, "mine, edited", edited.Body)

	assert.ErrorIs(t, svc.Delete(context.Background(), stranger, p.ID), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), author, p.ID))
}
