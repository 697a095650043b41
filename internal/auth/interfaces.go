package auth

import (
	"context"
	"time"

	"github.com/redmonkez12/contacts-api/internal/email"
	"github.com/redmonkez12/contacts-api/internal/user"
)

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the verified content of an access or refresh token
type TokenClaims struct {
	ID        string
	UserID    int64
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService defines the interface for token creation and validation.
// Implementations include JWTService (HS256) and PasetoService (PASETO v4.local).
// Each instance is bound to one secret and one token type.
type TokenService interface {
	CreateToken(userID int64, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// UserStore is the credential store the session manager works against
type UserStore interface {
	Create(ctx context.Context, params user.CreateParams, assign user.RoleAssigner) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
	CountByUsername(ctx context.Context, username string) (int, error)
	MarkEmailAsVerified(ctx context.Context, userID int64, verifiedAt time.Time) error
	UpdateRefreshToken(ctx context.Context, userID int64, tokenHash *string) error
	SetPasswordResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, userID int64, tokenHash, passwordHash string) error
}

// UserGetter loads the user a verified token refers to
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Notifier delivers verification and password reset emails
type Notifier interface {
	SendVerificationEmail(ctx context.Context, msg email.Message) error
	SendResetPasswordEmail(ctx context.Context, msg email.Message) error
}

// PasswordHasher produces and checks one-way hashes of secrets
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) bool
}

// TokenGenerator produces verification and reset tokens
type TokenGenerator interface {
	Generate() (string, error)
}

// RolePolicy decides the role of a newly registered account
type RolePolicy interface {
	AssignRole(existingUsers int) user.Role
}
