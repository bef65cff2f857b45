package categories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for categories.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	InsertCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const categoryQuery = `
	SELECT c.id, c.name, c.description, c.position, c.created_at,
	       (SELECT COUNT(*) FROM threads t WHERE t.category_id = c.id) AS thread_count
	FROM categories c`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Position, &c.CreatedAt, &c.ThreadCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories in display order.
func (r *PGRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, categoryQuery+` ORDER BY c.position, c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory fetches one category by id.
func (r *PGRepository) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, categoryQuery+` WHERE c.id = $1`, id))
}

// InsertCategory persists a new category.
func (r *PGRepository) InsertCategory(ctx context.Context, c *Category) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO categories (id, name, description, position, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at`,
		c.ID, c.Name, c.Description, c.Position).Scan(&c.CreatedAt)
}

// UpdateCategory rewrites the mutable columns.
func (r *PGRepository) UpdateCategory(ctx context.Context, c *Category) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE categories SET name = $2, description = $3, position = $4 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.Position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category and, via cascade, its threads.
func (r *PGRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
