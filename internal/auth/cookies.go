package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	AccessTokenCookie  = "accesstoken"
	RefreshTokenCookie = "refreshtoken"
)

// CookieManager writes and reads the signed session cookies
type CookieManager struct {
	codec      *securecookie.SecureCookie
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCookieManager signs cookie values with HMAC-SHA256 keyed by hashKey.
// secure marks cookies HTTPS-only and should be set in production.
func NewCookieManager(hashKey []byte, secure bool, accessTTL, refreshTTL time.Duration) *CookieManager {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(refreshTTL.Seconds()))
	return &CookieManager{
		codec:      codec,
		secure:     secure,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SetAuthCookies sets both session cookies
func (m *CookieManager) SetAuthCookies(w http.ResponseWriter, pair TokenPair) error {
	if err := m.SetAccessCookie(w, pair.AccessToken); err != nil {
		return err
	}
	return m.set(w, RefreshTokenCookie, pair.RefreshToken, m.refreshTTL)
}

// SetAccessCookie replaces the access token cookie
func (m *CookieManager) SetAccessCookie(w http.ResponseWriter, token string) error {
	return m.set(w, AccessTokenCookie, token, m.accessTTL)
}

// ClearAuthCookies expires both session cookies
func (m *CookieManager) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, m.cookie(name, "", -1))
	}
}

// AccessToken returns the verified value of the access token cookie
func (m *CookieManager) AccessToken(r *http.Request) (string, error) {
	return m.get(r, AccessTokenCookie)
}

// RefreshToken returns the verified value of the refresh token cookie
func (m *CookieManager) RefreshToken(r *http.Request) (string, error) {
	return m.get(r, RefreshTokenCookie)
}

func (m *CookieManager) set(w http.ResponseWriter, name, value string, ttl time.Duration) error {
	encoded, err := m.codec.Encode(name, value)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(name, encoded, int(ttl.Seconds())))
	return nil
}

func (m *CookieManager) get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	var value string
	if err := m.codec.Decode(name, c.Value, &value); err != nil {
		return "", err
	}
	if value == "" {
		return "", errors.New("empty cookie value")
	}
	return value, nil
}

func (m *CookieManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteNoneMode,
	}
}
