package posts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/threads"
)

// Sentinel errors returned by the posts service.
var (
	ErrThreadLocked = errors.New("posts: thread is locked")
	ErrForbidden    = errors.New("posts: forbidden")
	ErrBadQuote     = errors.New("posts: quoted post is not in this thread")
)

// ThreadSource exposes the thread state a reply must be checked against.
type ThreadSource interface {
	Get(ctx context.Context, id uuid.UUID) (*threads.Thread, error)
}

// Service wraps posting rules.
type Service struct {
	repo    Repository
	threads ThreadSource
}

// NewService constructs a Service.
func NewService(repo Repository, threadSource ThreadSource) *Service {
	return &Service{repo: repo, threads: threadSource}
}

// ListByThread returns a page of posts.
func (s *Service) ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]Post, error) {
	return s.repo.ListByThread(ctx, threadID, limit, offset)
}

// Create appends a post to a thread. Locked threads reject new posts,
// and a quote must reference an existing post in the same thread.
func (s *Service) Create(ctx context.Context, authorID, threadID uuid.UUID, body string, quotedPostID *uuid.UUID) (*Post, error) {
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Locked {
		return nil, ErrThreadLocked
	}
	if quotedPostID != nil {
		quoted, err := s.repo.GetPost(ctx, *quotedPostID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, ErrBadQuote
			}
			return nil, err
		}
		if quoted.ThreadID != threadID {
			return nil, ErrBadQuote
		}
	}

	p := &Post{
		ID:           uuid.New(),
		ThreadID:     threadID,
		AuthorID:     authorID,
		Body:         strings.TrimSpace(body),
		QuotedPostID: quotedPostID,
	}
	if err := s.repo.InsertPost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Edit rewrites the body of the actor's own post.
func (s *Service) Edit(ctx context.Context, actorID, postID uuid.UUID, body string) (*Post, error) {
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, ErrForbidden
	}
	if err := s.repo.UpdateBody(ctx, postID, strings.TrimSpace(body)); err != nil {
		return nil, err
	}
	return s.repo.GetPost(ctx, postID)
}

// Delete removes the actor's own post.
func (s *Service) Delete(ctx context.Context, actorID, postID uuid.UUID) error {
	p, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != actorID {
		return ErrForbidden
	}
	return s.repo.DeletePost(ctx, postID)
}
