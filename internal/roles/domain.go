// Package roles manages the role hierarchy of the board.
package roles

import (
	"time"

	"github.com/google/uuid"
)

// Role represents one rung of the moderation hierarchy. A lower
// HierarchyLevel means higher privilege; at most one role is the default
// assigned to new registrations.
type Role struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	HierarchyLevel int32     `json:"hierarchy_level"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
}
