package threads

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a discussion inside a category. The opening post and all
// replies live in the posts table.
type Thread struct {
	ID         uuid.UUID  `json:"id"`
	CategoryID uuid.UUID  `json:"categoryId"`
	AuthorID   uuid.UUID  `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Title      string     `json:"title"`
	Locked     bool       `json:"locked"`
	Pinned     bool       `json:"pinned"`
	PostCount  int64      `json:"postCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastPostAt *time.Time `json:"lastPostAt,omitempty"`
}
