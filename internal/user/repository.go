package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/contacts-api/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrResetTokenConsumed means the reset token read earlier is no longer the pending one
	ErrResetTokenConsumed = errors.New("password reset token no longer pending")
)

// registrationLockKey serializes count-then-insert during registration
const registrationLockKey = 7_164_021

const uniqueViolation = "23505"

// RoleAssigner picks the role of a new account given how many accounts exist
type RoleAssigner func(existingUsers int) Role

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. The role is chosen by assign while holding a
// transaction-scoped advisory lock, so concurrent first registrations cannot
// both observe an empty table.
func (r *Repository) Create(ctx context.Context, params CreateParams, assign RoleAssigner) (*User, error) {
	token := params.EmailVerificationToken
	dbUser := &database.User{
		Email:                  params.Email,
		Username:               params.Username,
		Password:               params.PasswordHash,
		EmailVerificationToken: &token,
		IsVerified:             false,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", registrationLockKey); err != nil {
			return fmt.Errorf("failed to acquire registration lock: %w", err)
		}

		existing, err := tx.NewSelect().Model((*database.User)(nil)).Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		dbUser.Role = string(assign(existing))

		if _, err := tx.NewInsert().Model(dbUser).Returning("*").Exec(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// CountByUsername returns how many users hold the given username (0 or 1)
func (r *Repository) CountByUsername(ctx context.Context, username string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("username = ?", username).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users by username: %w", err)
	}
	return count, nil
}

// MarkEmailAsVerified marks a user's email as verified and consumes the verification token
func (r *Repository) MarkEmailAsVerified(ctx context.Context, userID int64, verifiedAt time.Time) error {
	return r.update(ctx, userID, "mark email as verified", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("is_verified = ?", true).
			Set("verified_time = ?", verifiedAt).
			Set("email_verification_token = ?", "")
	})
}

// UpdateRefreshToken stores the hash of the latest refresh token; nil clears it
func (r *Repository) UpdateRefreshToken(ctx context.Context, userID int64, tokenHash *string) error {
	return r.update(ctx, userID, "update refresh token", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("refresh_token = ?", tokenHash)
	})
}

// SetPasswordResetToken stores a hashed reset token and its expiration
func (r *Repository) SetPasswordResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.update(ctx, userID, "set password reset token", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("password_reset_token = ?", tokenHash).
			Set("password_reset_token_expiration_time = ?", expiresAt)
	})
}

// ResetPassword replaces the password hash and clears the reset token and
// refresh token so every existing session has to log in again. It only
// applies while tokenHash is still the pending reset token, so a token
// cannot be spent twice by concurrent requests.
func (r *Repository) ResetPassword(ctx context.Context, userID int64, tokenHash, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password = ?", passwordHash).
		Set("password_reset_token = NULL").
		Set("password_reset_token_expiration_time = NULL").
		Set("refresh_token = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("password_reset_token = ?", tokenHash).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrResetTokenConsumed
	}
	return nil
}

func (r *Repository) update(ctx context.Context, userID int64, action string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := r.db.NewUpdate().Model((*database.User)(nil))
	result, err := set(q).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	if pqErr.Constraint == "users_username_unique" {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                               dbu.ID,
		Email:                            dbu.Email,
		Username:                         dbu.Username,
		PasswordHash:                     dbu.Password,
		Role:                             Role(dbu.Role),
		RefreshTokenHash:                 dbu.RefreshToken,
		IsVerified:                       dbu.IsVerified,
		VerifiedTime:                     dbu.VerifiedTime,
		EmailVerificationToken:           dbu.EmailVerificationToken,
		PasswordResetTokenHash:           dbu.PasswordResetToken,
		PasswordResetTokenExpirationTime: dbu.PasswordResetTokenExpirationTime,
		CreatedAt:                        dbu.CreatedAt,
		UpdatedAt:                        dbu.UpdatedAt,
	}
}
