package posts

import (
	"time"

	"github.com/google/uuid"
)

// Post is one message inside a thread. QuotedPostID, when set, points
// at an earlier post in the same thread.
type Post struct {
	ID           uuid.UUID  `json:"id"`
	ThreadID     uuid.UUID  `json:"threadId"`
	AuthorID     uuid.UUID  `json:"authorId"`
	AuthorName   string     `json:"authorName"`
	Body         string     `json:"body"`
	QuotedPostID *uuid.UUID `json:"quotedPostId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
}
