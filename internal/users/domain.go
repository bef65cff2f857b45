// Package users manages member accounts and moderation actions on them.
package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a member account.
type User struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	RoleID      *uuid.UUID `json:"role_id,omitempty"`
	Banned      bool       `json:"banned"`
	IsConfirmed bool       `json:"is_confirmed"`
	Bio         string     `json:"bio,omitempty"`
	AvatarPath  string     `json:"avatar_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// Profile is the public view of a user returned by profile endpoints.
type Profile struct {
	User      User   `json:"user"`
	RoleName  string `json:"role_name,omitempty"`
	PostCount int64  `json:"post_count"`
}
