package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/contacts-api/internal/user"
)

func newGuardFixture(t *testing.T) (*Middleware, *CookieManager, *memoryStore, *user.User) {
	t.Helper()
	store := newMemoryStore()
	u, err := store.Create(context.Background(), user.CreateParams{Email: "a@x.com", Username: "alice"}, FirstUserAdmin{}.AssignRole)
	require.NoError(t, err)

	cookies := NewCookieManager(testCookieKey, false, time.Minute, time.Hour)
	return NewMiddleware(newTestIssuer(), cookies, store), cookies, store, u
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAccess(t *testing.T) {
	mw, cookies, _, u := newGuardFixture(t)
	issuer := newTestIssuer()

	pair, err := issuer.IssueTokenPair(u.ID)
	require.NoError(t, err)
	expired, err := NewJWTService("access-secret", TokenTypeAccess).CreateToken(u.ID, -time.Minute)
	require.NoError(t, err)
	ghost, err := issuer.IssueAccessToken(999)
	require.NoError(t, err)

	signedCookie := func(token string) *http.Cookie {
		rec := httptest.NewRecorder()
		require.NoError(t, cookies.SetAccessCookie(rec, token))
		return cookiesByName(rec)[AccessTokenCookie]
	}

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		wantCode int
	}{
		{name: "no token", prepare: func(*http.Request) {}, wantCode: http.StatusUnauthorized},
		{name: "bearer", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pair.AccessToken) }, wantCode: http.StatusOK},
		{name: "lowercase scheme", prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+pair.AccessToken) }, wantCode: http.StatusOK},
		{name: "signed cookie", prepare: func(r *http.Request) { r.AddCookie(signedCookie(pair.AccessToken)) }, wantCode: http.StatusOK},
		{name: "unsigned cookie without header", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: pair.AccessToken})
		}, wantCode: http.StatusUnauthorized},
		{name: "cookie wins over header", prepare: func(r *http.Request) {
			r.AddCookie(signedCookie(expired))
			r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}, wantCode: http.StatusUnauthorized},
		{name: "refresh token as access", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pair.RefreshToken) }, wantCode: http.StatusUnauthorized},
		{name: "expired", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, wantCode: http.StatusUnauthorized},
		{name: "user gone", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, wantCode: http.StatusUnauthorized},
		{name: "basic auth", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic YTpi") }, wantCode: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got *user.User
			h := mw.RequireAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/current", nil)
			tc.prepare(req)
			rec := serve(h, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, u.ID, got.ID)
			} else {
				assert.Nil(t, got)
				assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireRefresh_AttachesRawToken(t *testing.T) {
	mw, cookies, _, u := newGuardFixture(t)

	pair, err := newTestIssuer().IssueTokenPair(u.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, cookies.SetAuthCookies(rec, pair))

	var gotToken string
	var gotUser *user.User
	h := mw.RequireRefresh(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken, _ = RefreshTokenFromContext(r.Context())
		gotUser, _ = UserFromContext(r.Context())
	}))

	req := requestWithCookies(cookiesByName(rec)[RefreshTokenCookie])
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, pair.RefreshToken, gotToken)
	require.NotNil(t, gotUser)
	assert.Equal(t, u.ID, gotUser.ID)

	// access token does not pass the refresh guard
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}
