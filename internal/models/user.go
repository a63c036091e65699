package models

import (
	"time"
)

// UserProfile is the signed-in user as returned by GET /users/me.
// It is replaced wholesale on every fetch.
type UserProfile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	ProfileImage  *string    `json:"profile_image"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at"`
}

// Clone returns a deep copy so snapshots handed to observers cannot be mutated.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}

	c := *u
	if u.ProfileImage != nil {
		img := *u.ProfileImage
		c.ProfileImage = &img
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
