package model

import (
	"fmt"
	"time"
)

// UserProfile holds the display identity used to denormalize authors onto
// posts and comments. UID is the identity asserted by the auth token.
type UserProfile struct {
	UID         string    `db:"uid" json:"uid"`
	DisplayName string    `db:"display_name" json:"displayName"`
	PhotoURL    *string   `db:"photo_url" json:"photoUrl"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// UpdateProfileRequest is the body of PUT /me/profile.
type UpdateProfileRequest struct {
	DisplayName string  `json:"displayName" validate:"required,max=80"`
	PhotoURL    *string `json:"photoUrl" validate:"omitempty,url"`
}

// ErrUserNotFound is returned when no profile exists for a UID.
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
