package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// EmailThrottle limits how often mail can be triggered for one address
type EmailThrottle interface {
	ReserveEmail(ctx context.Context, email string) (bool, error)
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service  *Service
	cookies  *CookieManager
	throttle EmailThrottle
}

func NewHandler(service *Service, cookies *CookieManager, throttle EmailThrottle) *Handler {
	return &Handler{
		service:  service,
		cookies:  cookies,
		throttle: throttle,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

// VerifyEmailRequest represents the email verification request body
type VerifyEmailRequest struct {
	Email                  string `json:"email" validate:"required,email,max=100"`
	EmailVerificationToken string `json:"emailVerificationToken" validate:"required,max=255"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,max=100"`
}

// ForgotPasswordRequest represents the forgot password request body
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=100"`
}

// ResetPasswordRequest represents the password reset request body
type ResetPasswordRequest struct {
	Email              string `json:"email" validate:"required,email,max=100"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max=100"`
	RepeatNewPassword  string `json:"repeatNewPassword" validate:"required,eqfield=NewPassword"`
	ResetPasswordToken string `json:"resetPasswordToken" validate:"required,max=255"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an unverified account. The first account ever registered becomes ADMIN.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} httputil.Envelope{data=RegisterResult}
// @Failure      400 {object} httputil.ErrorResponse "Validation error or email/username taken"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.handleError(w, logger, "registration", err)
		return
	}

	logger.Info("user registered")
	httputil.RespondData(w, result, "User successfully registered", http.StatusCreated)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Confirm an email address with the token sent at registration
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyEmailRequest true "Email and verification token"
// @Success      200 {object} httputil.Envelope{data=VerifyEmailResult}
// @Failure      400 {object} httputil.ErrorResponse "Unknown email or wrong token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/verify-email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	result, err := h.service.VerifyEmail(r.Context(), req.Email, req.EmailVerificationToken)
	if err != nil {
		h.handleError(w, logger, "email verification", err)
		return
	}

	logger.Info("email verified")
	httputil.RespondData(w, result, "Email successfully verified", http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and receive access and refresh tokens, also set as signed cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} httputil.Envelope{data=LoginResult}
// @Failure      400 {object} httputil.ErrorResponse "Invalid credentials or email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, logger, "login", err)
		return
	}

	pair := TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}
	if err := h.cookies.SetAuthCookies(w, pair); err != nil {
		h.handleError(w, logger, "login", err)
		return
	}

	logger.Info("user logged in")
	httputil.RespondData(w, result, "User successfully logged in", http.StatusOK)
}

// Current returns the authenticated user
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Envelope{data=CurrentUserResult}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /auth/current [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	httputil.RespondData(w, h.service.CurrentUser(u), "User data successfully retrieved", http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Forget the stored refresh token and clear both session cookies
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Envelope{data=bool}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/logout [delete]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"user_id": u.ID})

	if err := h.service.Logout(r.Context(), u); err != nil {
		h.handleError(w, logger, "logout", err)
		return
	}

	h.cookies.ClearAuthCookies(w)
	logger.Info("user logged out")
	httputil.RespondData(w, true, "User successfully logged out", http.StatusOK)
}

// RefreshToken issues a new access token
// @Summary      Refresh access token
// @Description  Exchange the current refresh token (cookie or bearer) for a new access token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Envelope{data=RefreshResult}
// @Failure      401 {object} httputil.ErrorResponse "Invalid or superseded refresh token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/refresh-token [post]
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token, _ := RefreshTokenFromContext(r.Context())
	result, err := h.service.RefreshToken(r.Context(), token)
	if err != nil {
		h.handleError(w, logger, "token refresh", err)
		return
	}

	if err := h.cookies.SetAccessCookie(w, result.AccessToken); err != nil {
		h.handleError(w, logger, "token refresh", err)
		return
	}

	logger.Info("access token refreshed")
	httputil.RespondData(w, result, "Token successfully refreshed", http.StatusOK)
}

// ForgotPassword starts the password reset flow
// @Summary      Request a password reset
// @Description  Email a short-lived reset token to a verified account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Account email"
// @Success      200 {object} httputil.Envelope{data=ForgotPasswordResult}
// @Failure      400 {object} httputil.ErrorResponse "Unknown or unverified email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	if h.throttle != nil {
		allowed, err := h.throttle.ReserveEmail(r.Context(), req.Email)
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err)
		}
		if !allowed {
			logger.Warn("password reset requested during cooldown")
			httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
			return
		}
	}

	result, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.handleError(w, logger, "forgot password", err)
		return
	}

	logger.Info("password reset requested")
	httputil.RespondData(w, result, "Password reset email sent", http.StatusOK)
}

// ResetPassword completes the password reset flow
// @Summary      Reset password
// @Description  Set a new password with a pending reset token. Existing sessions are ended.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset data"
// @Success      200 {object} httputil.Envelope{data=ResetPasswordResult}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired reset token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	logger := logging.GetLoggerFromContext(r.Context()).WithFields(map[string]any{"email": req.Email})

	result, err := h.service.ResetPassword(r.Context(), req.Email, req.ResetPasswordToken, req.NewPassword)
	if err != nil {
		h.handleError(w, logger, "password reset", err)
		return
	}

	h.cookies.ClearAuthCookies(w)
	logger.Info("password reset")
	httputil.RespondData(w, result, "Password successfully reset", http.StatusOK)
}

type errorMapping struct {
	err     error
	code    string
	status  int
	message string
}

var errorMappings = []errorMapping{
	{ErrDuplicateCredential, httputil.CodeDuplicateCredential, http.StatusBadRequest, "Email or username already registered"},
	{ErrInvalidCredentials, httputil.CodeInvalidCredentials, http.StatusBadRequest, "Invalid email or password"},
	{ErrEmailNotVerified, httputil.CodeEmailNotVerified, http.StatusBadRequest, "Email not verified, please check your inbox"},
	{ErrInvalidVerification, httputil.CodeInvalidVerification, http.StatusBadRequest, "Invalid email or verification token"},
	{ErrInvalidEmail, httputil.CodeInvalidEmail, http.StatusBadRequest, "Invalid email"},
	{ErrInvalidRefreshToken, httputil.CodeInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
	{ErrInvalidResetToken, httputil.CodeInvalidResetToken, http.StatusUnauthorized, "Invalid request"},
	{ErrResetTokenExpired, httputil.CodeResetTokenExpired, http.StatusUnauthorized, "Token expired"},
}

func (h *Handler) handleError(w http.ResponseWriter, logger *logging.Logger, action string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			logger.Warn(action+" failed", "error", err.Error())
			httputil.RespondErrorWithCode(w, m.message, m.code, m.status)
			return
		}
	}
	logger.Error(action+" failed: internal error", "error", err.Error())
	httputil.RespondErrorWithCode(w, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}
