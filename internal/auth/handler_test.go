package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/contacts-api/internal/httputil"
)

type stubThrottle struct {
	mu      sync.Mutex
	allowed bool
	calls   []string
}

func (s *stubThrottle) ReserveEmail(_ context.Context, emailAddr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, emailAddr)
	return s.allowed, nil
}

func (s *stubThrottle) set(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed = allowed
}

func (s *stubThrottle) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newAPI(t *testing.T, env *testEnv, throttle EmailThrottle) *apiClient {
	t.Helper()
	cookies := NewCookieManager(testCookieKey, false, time.Minute, time.Hour)
	h := NewHandler(env.svc, cookies, throttle)
	guard := NewMiddleware(env.issuer, cookies, env.store)

	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.With(guard.RequireAccess).Get("/current", h.Current)
		r.With(guard.RequireAccess).Delete("/logout", h.Logout)
		r.With(guard.RequireRefresh).Post("/refresh-token", h.RefreshToken)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, server: srv, client: &http.Client{Jar: jar}}
}

func (a *apiClient) do(method, path string, body any, header ...string) (*http.Response, []byte) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(a.t, err)
	return resp, out.Bytes()
}

func decodeData(t *testing.T, raw []byte, dst any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

func decodeError(t *testing.T, raw []byte) httputil.ErrorResponse {
	t.Helper()
	var e httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	env := newTestEnv(t, FixedTokenGenerator(TestModeToken))
	api := newAPI(t, env, nil)

	resp, body := api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "a@x.com", "username": "alice", "password": "p@ss1234",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var registered RegisterResult
	envl := decodeData(t, body, &registered)
	assert.Equal(t, 201, envl.Code)
	assert.Equal(t, "User successfully registered", envl.Status)
	assert.Equal(t, "secret", registered.EmailVerificationToken)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"email": "a@x.com", "emailVerificationToken": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeInvalidVerification, decodeError(t, body).Code)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/verify-email", map[string]string{
		"email": "a@x.com", "emailVerificationToken": registered.EmailVerificationToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var verified VerifyEmailResult
	decodeData(t, body, &verified)
	assert.True(t, verified.IsVerified)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "p@ss1234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var login LoginResult
	decodeData(t, body, &login)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
		assert.True(t, c.HttpOnly)
	}
	assert.True(t, names[AccessTokenCookie] && names[RefreshTokenCookie])

	// the cookie jar carries the session from here on
	resp, body = api.do(http.MethodGet, "/api/v1/auth/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var current CurrentUserResult
	decodeData(t, body, &current)
	assert.Equal(t, CurrentUserResult{Email: "a@x.com", Username: "alice", Role: "ADMIN"}, current)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var refreshed RefreshResult
	decodeData(t, body, &refreshed)
	assert.Equal(t, login.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	resp, body = api.do(http.MethodDelete, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = api.do(http.MethodGet, "/api/v1/auth/current", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "cookies cleared")

	resp, body = api.do(http.MethodPost, "/api/v1/auth/refresh-token", nil, "Authorization", "Bearer "+login.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, httputil.CodeInvalidRefreshToken, decodeError(t, body).Code)

	// bearer access token still works until it expires
	resp, _ = api.do(http.MethodGet, "/api/v1/auth/current", nil, "Authorization", "Bearer "+refreshed.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthHandlers_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, FixedTokenGenerator(TestModeToken))
	api := newAPI(t, env, nil)

	resp, body := api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "not-an-email", "username": "al", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	verr := decodeError(t, body)
	assert.Equal(t, httputil.CodeValidationFailed, verr.Code)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["email"] && fields["username"] && fields["password"])

	resp, body = api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "a@x.com", "username": "alice", "password": "p@ss1234"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "a@x.com", "username": "other", "password": "p@ss1234"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeDuplicateCredential, decodeError(t, body).Code)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.com", "password": "p@ss1234"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeEmailNotVerified, decodeError(t, body).Code)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ghost@x.com", "password": "p@ss1234"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeInvalidCredentials, decodeError(t, body).Code)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeInvalidEmail, decodeError(t, body).Code)

	resp, body = api.do(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, httputil.CodeUnauthorized, decodeError(t, body).Code)

	env.store.fail(assert.AnError)
	resp, body = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.com", "password": "p@ss1234"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, httputil.CodeInternalError, e.Code)
	assert.NotContains(t, e.Error, assert.AnError.Error())
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, FixedTokenGenerator(TestModeToken))
	env.registerVerified(t, "a@x.com", "alice", "p@ss1234")
	throttle := &stubThrottle{allowed: true}
	api := newAPI(t, env, throttle)

	resp, body := api.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var forgot ForgotPasswordResult
	decodeData(t, body, &forgot)
	assert.Equal(t, "a@x.com", forgot.Email)
	assert.Equal(t, []string{"a@x.com"}, throttle.seen())
	assert.NotContains(t, string(body), "secret", "token only travels by email")

	resp, body = api.do(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email": "a@x.com", "newPassword": "n3w-password", "repeatNewPassword": "different", "resetPasswordToken": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httputil.CodeValidationFailed, decodeError(t, body).Code)

	reset := map[string]string{
		"email": "a@x.com", "newPassword": "n3w-password", "repeatNewPassword": "n3w-password", "resetPasswordToken": "secret",
	}
	resp, body = api.do(http.MethodPost, "/api/v1/auth/reset-password", reset)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result ResetPasswordResult
	decodeData(t, body, &result)
	assert.Equal(t, ResetPasswordResult{Email: "a@x.com", Username: "alice"}, result)
	for _, c := range resp.Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}

	resp, body = api.do(http.MethodPost, "/api/v1/auth/reset-password", reset)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, httputil.CodeInvalidResetToken, decodeError(t, body).Code)

	throttle.set(false)
	resp, body = api.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, httputil.CodeTooManyRequests, decodeError(t, body).Code)
}

func TestPasswordReset_ExpiredOverHTTP(t *testing.T) {
	env := newTestEnv(t, FixedTokenGenerator(TestModeToken))
	env.registerVerified(t, "a@x.com", "alice", "p@ss1234")
	var skew atomic.Int64
	env.svc.now = func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	api := newAPI(t, env, nil)

	resp, _ := api.do(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	skew.Store(int64(time.Minute))
	resp, body := api.do(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email": "a@x.com", "newPassword": "n3w-password", "repeatNewPassword": "n3w-password", "resetPasswordToken": "secret",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, httputil.CodeResetTokenExpired, e.Code)
	assert.Equal(t, "Token expired", e.Error)
}
