package database

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the persisted credential record
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                               int64      `bun:"id,pk,autoincrement"`
	Email                            string     `bun:"email,notnull"`
	Username                         string     `bun:"username,notnull"`
	Password                         string     `bun:"password,notnull"`
	Role                             string     `bun:"role,notnull"`
	RefreshToken                     *string    `bun:"refresh_token"`
	IsVerified                       bool       `bun:"is_verified,notnull"`
	VerifiedTime                     *time.Time `bun:"verified_time"`
	EmailVerificationToken           *string    `bun:"email_verification_token"`
	PasswordResetToken               *string    `bun:"password_reset_token"`
	PasswordResetTokenExpirationTime *time.Time `bun:"password_reset_token_expiration_time"`
	CreatedAt                        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt                        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// Contact belongs to exactly one user
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID        int64   `bun:"id,pk,autoincrement"`
	FirstName string  `bun:"first_name,notnull"`
	LastName  *string `bun:"last_name"`
	Email     *string `bun:"email"`
	Phone     *string `bun:"phone"`
	UserID    int64   `bun:"user_id,notnull"`
}

// Address belongs to exactly one contact
type Address struct {
	bun.BaseModel `bun:"table:addresses,alias:a"`

	ID         int64   `bun:"id,pk,autoincrement"`
	Street     *string `bun:"street"`
	City       *string `bun:"city"`
	Province   *string `bun:"province"`
	Country    string  `bun:"country,notnull"`
	PostalCode *string `bun:"postal_code"`
	ContactID  int64   `bun:"contact_id,notnull"`
}
