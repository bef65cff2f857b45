package mail

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/sse"
)

// Sentinel errors returned by the mail service.
var (
	ErrRecipientUnknown = errors.New("mail: recipient unknown")
	ErrSelfMessage      = errors.New("mail: cannot message yourself")
)

// Notifier pushes a real-time event to a recipient. It must never
// block or fail; delivery is best effort.
type Notifier interface {
	Notify(recipientID uuid.UUID, payload string)
}

// RecipientSource resolves usernames to user ids.
type RecipientSource interface {
	GetUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error)
}

// Service wraps private messaging rules.
type Service struct {
	repo       Repository
	recipients RecipientSource
	notifier   Notifier
	unread     singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository, recipients RecipientSource, notifier Notifier) *Service {
	return &Service{repo: repo, recipients: recipients, notifier: notifier}
}

// Send persists a message to the named recipient and then notifies any
// open streams. The notification runs strictly after the write has
// succeeded and cannot fail the request.
func (s *Service) Send(ctx context.Context, senderID uuid.UUID, recipientUsername, subject, body string) (*Message, error) {
	recipientID, err := s.recipients.GetUserIDByUsername(ctx, strings.TrimSpace(recipientUsername))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrRecipientUnknown
		}
		return nil, err
	}
	if recipientID == senderID {
		return nil, ErrSelfMessage
	}

	m := &Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     strings.TrimSpace(subject),
		Body:        body,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(recipientID, sse.EventNewMessage)
	}
	return m, nil
}

// Received returns the caller's inbox.
func (s *Service) Received(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	return s.repo.ListReceived(ctx, userID)
}

// Sent returns the caller's sent messages.
func (s *Service) Sent(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	return s.repo.ListSent(ctx, userID)
}

// UnreadCount reports how many unread messages the caller has. The
// mail button indicator polls this on every page load, so concurrent
// calls for the same user are coalesced into one query.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	v, err, _ := s.unread.Do(userID.String(), func() (any, error) {
		return s.repo.UnreadCount(ctx, userID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// MarkRead marks a received message as read.
func (s *Service) MarkRead(ctx context.Context, userID, messageID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, messageID)
}

// Delete removes the caller's copy of a message.
func (s *Service) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	return s.repo.DeleteForUser(ctx, userID, messageID)
}
