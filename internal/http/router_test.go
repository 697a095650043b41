package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/config"
	"github.com/redmonkez12/contacts-api/internal/contact"
	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// blockingLimiter rejects every request for the purposes it lists
type blockingLimiter struct {
	mu      sync.Mutex
	blocked map[string]bool
	wrapped []string
}

func (l *blockingLimiter) Middleware(purpose string) func(http.Handler) http.Handler {
	l.mu.Lock()
	l.wrapped = append(l.wrapped, purpose)
	l.mu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.blocked[purpose] {
				httputil.RespondErrorWithCode(w, "too many requests", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestRouter(t *testing.T, env string, limiter RateLimiter, checks ...HealthCheck) http.Handler {
	t.Helper()
	access, refresh, err := auth.NewTokenServices(auth.FormatJWT, "access-secret", "refresh-secret")
	require.NoError(t, err)
	issuer := auth.NewIssuer(access, refresh, time.Minute, time.Hour)
	cookies := auth.NewCookieManager([]byte("0123456789abcdef0123456789abcdef"), false, time.Minute, time.Hour)

	cfg := &config.Config{Server: config.ServerConfig{
		Env:            env,
		TrustedOrigins: []string{"http://localhost:3000"},
	}}

	return NewRouter(cfg, Handlers{
		Auth:           auth.NewHandler(nil, cookies, nil),
		AuthMiddleware: auth.NewMiddleware(issuer, cookies, nil),
		Contacts:       contact.NewHandler(nil),
		RateLimiter:    limiter,
		Health:         checks,
	}, logging.NewLogger(false))
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checks     []HealthCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{name: "all up", checks: []HealthCheck{ok}, wantCode: http.StatusOK, wantStatus: "ok", wantChecks: map[string]string{"database": "ok"}},
		{name: "redis down", checks: []HealthCheck{ok, down}, wantCode: http.StatusServiceUnavailable, wantStatus: "degraded",
			wantChecks: map[string]string{"database": "ok", "redis": "unavailable"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{}, tc.checks...)

			rec := serve(r, http.MethodGet, "/health")
			require.Equal(t, tc.wantCode, rec.Code)

			var body HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, tc.wantChecks, body.Checks)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestRouter_GuardsProtectedRoutes(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/current"},
		{http.MethodDelete, "/api/v1/auth/logout"},
		{http.MethodPost, "/api/v1/auth/refresh-token"},
		{http.MethodGet, "/api/v1/contacts"},
		{http.MethodPost, "/api/v1/contacts"},
		{http.MethodGet, "/api/v1/contacts/1"},
		{http.MethodDelete, "/api/v1/contacts/1/addresses/2"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := serve(r, route.method, route.path)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), httputil.CodeUnauthorized)
		})
	}
}

func TestRouter_RateLimitsPublicAuthRoutes(t *testing.T) {
	limiter := &blockingLimiter{blocked: map[string]bool{"register": true, "login": true, "forgot-password": true}}
	r := newTestRouter(t, config.EnvDevelopment, limiter)

	assert.ElementsMatch(t, []string{"register", "login", "forgot-password"}, limiter.wrapped)

	for _, path := range []string{"/api/v1/auth/register", "/api/v1/auth/login", "/api/v1/auth/forgot-password"} {
		rec := serve(r, http.MethodPost, path)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, path)
	}
}

func TestRouter_NotFoundUsesErrorEnvelope(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{})

	rec := serve(r, http.MethodGet, "/api/v1/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httputil.CodeNotFound, resp.Code)
}

func TestRouter_SwaggerOnlyInDevelopment(t *testing.T) {
	dev := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{})
	prod := newTestRouter(t, config.EnvProduction, &blockingLimiter{})

	rec := serve(dev, http.MethodGet, "/swagger/index.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "script-src")

	rec = serve(prod, http.MethodGet, "/swagger/index.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	dev := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{})
	prod := newTestRouter(t, config.EnvProduction, &blockingLimiter{})

	rec := serve(dev, http.MethodGet, "/api/v1/contacts")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = serve(prod, http.MethodGet, "/health")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
}

func TestRouter_CORSAllowsCredentialsForTrustedOrigin(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment, &blockingLimiter{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
