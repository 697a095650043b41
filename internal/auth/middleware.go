package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey         ContextKey = "user"
	RefreshTokenContextKey ContextKey = "refresh_token"
)

// Middleware guards routes with access or refresh tokens
type Middleware struct {
	issuer  *Issuer
	cookies *CookieManager
	users   UserGetter
}

func NewMiddleware(issuer *Issuer, cookies *CookieManager, users UserGetter) *Middleware {
	return &Middleware{issuer: issuer, cookies: cookies, users: users}
}

// RequireAccess admits requests carrying a valid access token for an existing user
func (m *Middleware) RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _, ok := m.authenticate(w, r, m.cookies.AccessToken, m.issuer.ParseAccessToken)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRefresh admits requests carrying a valid refresh token for an
// existing user. The raw token is kept in the context for the handler.
func (m *Middleware) RequireRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, token, ok := m.authenticate(w, r, m.cookies.RefreshToken, m.issuer.ParseRefreshToken)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, u)
		ctx = context.WithValue(ctx, RefreshTokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	fromCookie func(*http.Request) (string, error),
	parse func(string) (*TokenClaims, error),
) (*user.User, string, bool) {
	log := logging.GetLoggerFromContext(r.Context())

	token, err := fromCookie(r)
	if err != nil {
		token = bearerToken(r)
	}
	if token == "" {
		log.Debug("no token presented")
		unauthorized(w)
		return nil, "", false
	}

	claims, err := parse(token)
	if err != nil {
		log.Debug("token rejected", "error", err)
		unauthorized(w)
		return nil, "", false
	}

	u, err := m.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		log.Debug("token user not found", "user_id", claims.UserID, "error", err)
		unauthorized(w)
		return nil, "", false
	}

	return u, token, true
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter) {
	httputil.RespondErrorWithCode(w, "Unauthorized", httputil.CodeUnauthorized, http.StatusUnauthorized)
}

// UserFromContext returns the user attached by a guard
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}

// RefreshTokenFromContext returns the raw refresh token attached by RequireRefresh
func RefreshTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(RefreshTokenContextKey).(string)
	return token, ok
}

// WithUser attaches u to ctx the way the guards do
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}
