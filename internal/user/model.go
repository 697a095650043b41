package user

import (
	"time"
)

// Role is the authorization level of an account
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID                               int64      `json:"id"`
	Email                            string     `json:"email"`
	Username                         string     `json:"username"`
	PasswordHash                     string     `json:"-"` // Never expose password hash in JSON
	Role                             Role       `json:"role"`
	RefreshTokenHash                 *string    `json:"-"`
	IsVerified                       bool       `json:"isVerified"`
	VerifiedTime                     *time.Time `json:"verifiedTime,omitempty"`
	EmailVerificationToken           *string    `json:"-"`
	PasswordResetTokenHash           *string    `json:"-"`
	PasswordResetTokenExpirationTime *time.Time `json:"-"`
	CreatedAt                        time.Time  `json:"createdAt"`
	UpdatedAt                        time.Time  `json:"updatedAt"`
}

// CreateParams carries the fields needed to insert a new account.
// Role is decided by the caller-supplied policy at insert time.
type CreateParams struct {
	Email                  string
	Username               string
	PasswordHash           string
	EmailVerificationToken string
}
