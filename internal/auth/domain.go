package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credential-bearing view of a user row.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	RoleID       *uuid.UUID
	Banned       bool
	IsConfirmed  bool
	CreatedAt    time.Time
}
