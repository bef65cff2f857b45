package mail

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palaver-board/palaver/internal/shared"
)

// Repository defines persistence operations for private messages.
type Repository interface {
	InsertMessage(ctx context.Context, m *Message) error
	ListReceived(ctx context.Context, userID uuid.UUID) ([]Message, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]Message, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, messageID uuid.UUID) error
	DeleteForUser(ctx context.Context, userID, messageID uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const messageQuery = `
	SELECT m.id, m.sender_id, s.username, m.recipient_id, r.username,
	       m.subject, m.body, m.read, m.created_at
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.recipient_id`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.RecipientID, &m.RecipientName,
		&m.Subject, &m.Body, &m.Read, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// InsertMessage persists a new message.
func (r *PGRepository) InsertMessage(ctx context.Context, m *Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`,
		m.ID, m.SenderID, m.RecipientID, m.Subject, m.Body).Scan(&m.CreatedAt)
}

func (r *PGRepository) list(ctx context.Context, query string, userID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListReceived returns the user's inbox, newest first.
func (r *PGRepository) ListReceived(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	return r.list(ctx, messageQuery+`
		WHERE m.recipient_id = $1 AND NOT m.recipient_deleted
		ORDER BY m.created_at DESC`, userID)
}

// ListSent returns the user's sent messages, newest first.
func (r *PGRepository) ListSent(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	return r.list(ctx, messageQuery+`
		WHERE m.sender_id = $1 AND NOT m.sender_deleted
		ORDER BY m.created_at DESC`, userID)
}

// UnreadCount counts unread, undeleted messages in the user's inbox.
func (r *PGRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND NOT read AND NOT recipient_deleted`,
		userID).Scan(&n)
	return n, err
}

// MarkRead marks a received message as read. Only the recipient can.
func (r *PGRepository) MarkRead(ctx context.Context, userID, messageID uuid.UUID) error {
	return r.exec(ctx,
		`UPDATE messages SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		messageID, userID)
}

// DeleteForUser soft-deletes the caller's side of a message. The row is
// dropped once both sides have deleted it.
func (r *PGRepository) DeleteForUser(ctx context.Context, userID, messageID uuid.UUID) error {
	err := r.exec(ctx, `
		UPDATE messages SET
			sender_deleted = sender_deleted OR (sender_id = $2),
			recipient_deleted = recipient_deleted OR (recipient_id = $2)
		WHERE id = $1 AND (sender_id = $2 OR recipient_id = $2)`,
		messageID, userID)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`DELETE FROM messages WHERE id = $1 AND sender_deleted AND recipient_deleted`, messageID)
	return err
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
