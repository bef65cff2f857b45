package categories

import (
	"time"

	"github.com/google/uuid"
)

// Category is a top-level grouping of threads on the board.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Position    int32     `json:"position"`
	ThreadCount int64     `json:"threadCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
