package auth

import "errors"

var (
	ErrDuplicateCredential = errors.New("email or username already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotVerified    = errors.New("email not verified, please check your inbox")
	ErrInvalidVerification = errors.New("invalid email or verification token")
	ErrInvalidEmail        = errors.New("no account registered with this email")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidResetToken   = errors.New("invalid reset token")
	ErrResetTokenExpired   = errors.New("reset token has expired")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)
