package threads

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for threads.
type Repository interface {
	ListByCategory(ctx context.Context, categoryID uuid.UUID, limit, offset int) ([]Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*Thread, error)
	InsertThread(ctx context.Context, t *Thread) error
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) error
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error
	DeleteThread(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const threadQuery = `
	SELECT t.id, t.category_id, t.author_id, u.username, t.title, t.locked, t.pinned, t.created_at,
	       (SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.id) AS post_count,
	       (SELECT MAX(p.created_at) FROM posts p WHERE p.thread_id = t.id) AS last_post_at
	FROM threads t
	JOIN users u ON u.id = t.author_id`

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.CategoryID, &t.AuthorID, &t.AuthorName, &t.Title, &t.Locked, &t.Pinned,
		&t.CreatedAt, &t.PostCount, &t.LastPostAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByCategory returns a page of threads, pinned ones first, the rest
// by most recent activity.
func (r *PGRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID, limit, offset int) ([]Thread, error) {
	rows, err := r.pool.Query(ctx, threadQuery+`
		WHERE t.category_id = $1
		ORDER BY t.pinned DESC, COALESCE((SELECT MAX(p.created_at) FROM posts p WHERE p.thread_id = t.id), t.created_at) DESC
		LIMIT $2 OFFSET $3`,
		categoryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetThread fetches one thread by id.
func (r *PGRepository) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	return scanThread(r.pool.QueryRow(ctx, threadQuery+` WHERE t.id = $1`, id))
}

// InsertThread persists a new thread.
func (r *PGRepository) InsertThread(ctx context.Context, t *Thread) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO threads (id, category_id, author_id, title, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`,
		t.ID, t.CategoryID, t.AuthorID, t.Title).Scan(&t.CreatedAt)
}

// SetLocked flips the locked flag.
func (r *PGRepository) SetLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	return r.exec(ctx, `UPDATE threads SET locked = $2 WHERE id = $1`, id, locked)
}

// SetPinned flips the pinned flag.
func (r *PGRepository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	return r.exec(ctx, `UPDATE threads SET pinned = $2 WHERE id = $1`, id, pinned)
}

// DeleteThread removes a thread and, via cascade, its posts.
func (r *PGRepository) DeleteThread(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM threads WHERE id = $1`, id)
}

func (r *PGRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
