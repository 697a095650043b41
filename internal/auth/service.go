package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redmonkez12/contacts-api/internal/email"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/user"
)

// Config holds the session manager settings that are not token signing concerns
type Config struct {
	// ResetTokenTTL is how long a password reset token stays usable
	ResetTokenTTL time.Duration
	// FrontendOrigin is the base URL used for links in emails
	FrontendOrigin string
}

type RegisterResult struct {
	Email                  string `json:"email"`
	Username               string `json:"username"`
	EmailVerificationToken string `json:"emailVerificationToken"`
}

type VerifyEmailResult struct {
	Email        string    `json:"email"`
	Role         user.Role `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	VerifiedTime time.Time `json:"verifiedTime"`
}

type LoginResult struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type CurrentUserResult struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Role     user.Role `json:"role"`
}

type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordResult struct {
	Email string `json:"email"`
}

type ResetPasswordResult struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Service handles authentication business logic
type Service struct {
	users         UserStore
	issuer        *Issuer
	passwords     PasswordHasher
	refreshHashes PasswordHasher
	tokens        TokenGenerator
	roles         RolePolicy
	notifier      Notifier
	logger        *logging.Logger
	cfg           Config
	now           func() time.Time
}

func NewService(
	users UserStore,
	issuer *Issuer,
	passwords PasswordHasher,
	refreshHashes PasswordHasher,
	tokens TokenGenerator,
	roles RolePolicy,
	notifier Notifier,
	logger *logging.Logger,
	cfg Config,
) *Service {
	return &Service{
		users:         users,
		issuer:        issuer,
		passwords:     passwords,
		refreshHashes: refreshHashes,
		tokens:        tokens,
		roles:         roles,
		notifier:      notifier,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Register creates an unverified account and sends the verification email
func (s *Service) Register(ctx context.Context, emailAddr, username, password string) (*RegisterResult, error) {
	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return nil, ErrDuplicateCredential
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	taken, err := s.users.CountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken > 0 {
		return nil, ErrDuplicateCredential
	}

	passwordHash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.CreateParams{
		Email:                  emailAddr,
		Username:               username,
		PasswordHash:           passwordHash,
		EmailVerificationToken: verificationToken,
	}, s.roles.AssignRole)
	if err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, user.ErrDuplicateEmail) || errors.Is(err, user.ErrDuplicateUsername) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	msg := s.message(newUser, verificationToken)
	if err := s.notifier.SendVerificationEmail(ctx, msg); err != nil {
		s.logger.Warn("failed to send verification email", "email", newUser.Email, "error", err)
	}

	return &RegisterResult{
		Email:                  newUser.Email,
		Username:               newUser.Username,
		EmailVerificationToken: verificationToken,
	}, nil
}

// VerifyEmail consumes the verification token of the account registered with emailAddr
func (s *Service) VerifyEmail(ctx context.Context, emailAddr, token string) (*VerifyEmailResult, error) {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidVerification
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// A consumed token is stored as "" and never matches again
	if u.EmailVerificationToken == nil || *u.EmailVerificationToken == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(*u.EmailVerificationToken), []byte(token)) != 1 {
		return nil, ErrInvalidVerification
	}

	verifiedAt := s.now()
	if err := s.users.MarkEmailAsVerified(ctx, u.ID, verifiedAt); err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	return &VerifyEmailResult{
		Email:        u.Email,
		Role:         u.Role,
		IsVerified:   true,
		VerifiedTime: verifiedAt,
	}, nil
}

// Login checks credentials, issues a token pair and remembers the refresh token hash
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.IsVerified {
		return nil, ErrEmailNotVerified
	}

	if !s.passwords.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuer.IssueTokenPair(u.ID)
	if err != nil {
		return nil, err
	}

	refreshHash, err := s.refreshHashes.Hash(pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to hash refresh token: %w", err)
	}
	if err := s.users.UpdateRefreshToken(ctx, u.ID, &refreshHash); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &LoginResult{
		Email:        u.Email,
		Username:     u.Username,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// CurrentUser describes the authenticated user
func (s *Service) CurrentUser(u *user.User) *CurrentUserResult {
	return &CurrentUserResult{
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}
}

// RefreshToken issues a new access token for a refresh token that matches
// the one stored for its user. The refresh token itself is not rotated.
func (s *Service) RefreshToken(ctx context.Context, rawToken string) (*RefreshResult, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	claims, err := s.issuer.ParseRefreshToken(rawToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.RefreshTokenHash == nil || !s.refreshHashes.Verify(*u.RefreshTokenHash, rawToken) {
		return nil, ErrInvalidRefreshToken
	}

	accessToken, err := s.issuer.IssueAccessToken(u.ID)
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: rawToken,
	}, nil
}

// Logout forgets the stored refresh token so it can no longer be used
func (s *Service) Logout(ctx context.Context, u *user.User) error {
	if err := s.users.UpdateRefreshToken(ctx, u.ID, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// ForgotPassword stores a hashed, time-boxed reset token and emails the plain one
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) (*ForgotPasswordResult, error) {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.IsVerified {
		return nil, ErrEmailNotVerified
	}

	resetToken, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reset token: %w", err)
	}

	tokenHash, err := s.passwords.Hash(resetToken)
	if err != nil {
		return nil, fmt.Errorf("failed to hash reset token: %w", err)
	}

	expiresAt := s.now().Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetPasswordResetToken(ctx, u.ID, tokenHash, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.notifier.SendResetPasswordEmail(ctx, s.message(u, resetToken)); err != nil {
		s.logger.Warn("failed to send password reset email", "email", u.Email, "error", err)
	}

	return &ForgotPasswordResult{Email: u.Email}, nil
}

// ResetPassword replaces the password when token is the pending, unexpired
// reset token. Reset state and the stored refresh token are cleared.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, token, newPassword string) (*ResetPasswordResult, error) {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash == "" || u.PasswordResetTokenExpirationTime == nil {
		return nil, ErrInvalidResetToken
	}

	if s.now().After(*u.PasswordResetTokenExpirationTime) {
		return nil, ErrResetTokenExpired
	}

	if !s.passwords.Verify(*u.PasswordResetTokenHash, token) {
		return nil, ErrInvalidResetToken
	}

	passwordHash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.ResetPassword(ctx, u.ID, *u.PasswordResetTokenHash, passwordHash); err != nil {
		if errors.Is(err, user.ErrResetTokenConsumed) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}

	return &ResetPasswordResult{
		Email:    u.Email,
		Username: u.Username,
	}, nil
}

func (s *Service) message(u *user.User, token string) email.Message {
	return email.Message{
		Email:  u.Email,
		Name:   u.Username,
		Token:  token,
		Origin: s.cfg.FrontendOrigin,
	}
}
