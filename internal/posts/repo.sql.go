package posts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for posts.
type Repository interface {
	ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	InsertPost(ctx context.Context, p *Post) error
	UpdateBody(ctx context.Context, id uuid.UUID, body string) error
	DeletePost(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const postQuery = `
	SELECT p.id, p.thread_id, p.author_id, u.username, p.body, p.quoted_post_id, p.created_at, p.edited_at
	FROM posts p
	JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.ThreadID, &p.AuthorID, &p.AuthorName, &p.Body, &p.QuotedPostID, &p.CreatedAt, &p.EditedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByThread returns a page of posts in posting order.
func (r *PGRepository) ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]Post, error) {
	rows, err := r.pool.Query(ctx, postQuery+`
		WHERE p.thread_id = $1
		ORDER BY p.created_at
		LIMIT $2 OFFSET $3`,
		threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetPost fetches one post by id.
func (r *PGRepository) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	return scanPost(r.pool.QueryRow(ctx, postQuery+` WHERE p.id = $1`, id))
}

// InsertPost persists a new post.
func (r *PGRepository) InsertPost(ctx context.Context, p *Post) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO posts (id, thread_id, author_id, body, quoted_post_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`,
		p.ID, p.ThreadID, p.AuthorID, p.Body, p.QuotedPostID).Scan(&p.CreatedAt)
}

// UpdateBody rewrites a post body and stamps the edit time.
func (r *PGRepository) UpdateBody(ctx context.Context, id uuid.UUID, body string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE posts SET body = $2, edited_at = NOW() WHERE id = $1`, id, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeletePost removes a post.
func (r *PGRepository) DeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
