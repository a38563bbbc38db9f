package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fakerecorder "github.com/mindwell-app/mindwell-server/auth/audit/recorderfake"
	"github.com/mindwell-app/mindwell-server/internal/config"
	"github.com/mindwell-app/mindwell-server/ratelimit"
	"github.com/mindwell-app/mindwell-server/records"
	"github.com/mindwell-app/mindwell-server/resettoken"
	"github.com/mindwell-app/mindwell-server/server"
	fakeuserrepo "github.com/mindwell-app/mindwell-server/users/repofake"
)

const (
	testEmail    = "a@x.com"
	testPassword = "Sixchr!A1"
	testName     = "Test User"
)

type serverFixture struct {
	srv      *server.Server
	userRepo *fakeuserrepo.FakeUserRepo
	store    *ratelimit.MemoryStore
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		userRepo: fakeuserrepo.NewFakeUserRepo(),
		store:    ratelimit.NewMemoryStore(),
	}
	t.Cleanup(f.store.Close)

	srv, err := server.New(config.New(), server.Repos{
		Users:       f.userRepo,
		Records:     records.NewInMemoryRepo(),
		ResetTokens: resettoken.NewInMemoryRepo(),
		Audit:       fakerecorder.NewFakeRecorder(),
		Counters:    f.store,
	})
	require.NoError(t, err)
	f.srv = srv
	return f
}

// do executes one request against the server with a fresh recorder.
func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == server.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

// register creates an account and returns its session cookie.
func (f *serverFixture) register(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := f.do(jsonRequest(http.MethodPost, server.RouteAPIRegister, map[string]string{
		"email":       email,
		"password":    testPassword,
		"displayName": testName,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupServer(t)

	cookie := f.register(t, testEmail)
	assert.True(t, cookie.HttpOnly)

	w := f.do(jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
		"identifier": testEmail,
		"password":   testPassword,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionCookie(t, w)

	var body struct {
		User struct {
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, testEmail, body.User.Email)
	assert.Equal(t, testName, body.User.DisplayName)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := setupServer(t)
	f.register(t, testEmail)

	w := f.do(jsonRequest(http.MethodPost, server.RouteAPIRegister, map[string]string{
		"email":    testEmail,
		"password": testPassword,
	}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterDuplicatePhoneConflicts(t *testing.T) {
	f := setupServer(t)

	w := f.do(jsonRequest(http.MethodPost, server.RouteAPIRegister, map[string]string{
		"email":    testEmail,
		"password": testPassword,
		"phone":    "+15551234567",
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(jsonRequest(http.MethodPost, server.RouteAPIRegister, map[string]string{
		"email":    "other@example.com",
		"password": testPassword,
		"phone":    "+15551234567",
	}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := setupServer(t)

	w := f.do(jsonRequest(http.MethodPost, server.RouteAPIRegister, map[string]string{
		"email":    testEmail,
		"password": "weak",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := setupServer(t)
	f.register(t, testEmail)

	wrongPassword := f.do(jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
		"identifier": testEmail,
		"password":   "Wrong-pass1",
	}))
	unknownUser := f.do(jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
		"identifier": "nobody@x.com",
		"password":   "Wrong-pass1",
	}))

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	f := setupServer(t)
	f.register(t, testEmail)

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = f.do(jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
			"identifier": testEmail,
			"password":   "Wrong-pass1",
		}))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestProtectedAPIWithoutSession(t *testing.T) {
	f := setupServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestProtectedAPIWithSession(t *testing.T) {
	f := setupServer(t)
	cookie := f.register(t, testEmail)

	req := httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil)
	req.AddCookie(cookie)
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), testEmail)
}

func TestTamperedSessionRejected(t *testing.T) {
	f := setupServer(t)
	cookie := f.register(t, testEmail)

	req := httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"})
	w := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPageRedirectsToSignIn(t *testing.T) {
	f := setupServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/signin?callbackUrl="), location)
}

func TestSignInPageRedirectsWhenAuthenticated(t *testing.T) {
	f := setupServer(t)
	cookie := f.register(t, testEmail)

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	req.AddCookie(cookie)
	w := f.do(req)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestSecurityHeaders(t *testing.T) {
	f := setupServer(t)

	w := f.do(jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
		"identifier": testEmail,
		"password":   testPassword,
	}))

	h := w.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	assert.Equal(t, "default-src 'self'", h.Get("Content-Security-Policy"))
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	f := setupServer(t)
	f.register(t, testEmail)

	known := f.do(jsonRequest(http.MethodPost, server.RouteAPIForgotPassword, map[string]string{"email": testEmail}))
	unknown := f.do(jsonRequest(http.MethodPost, server.RouteAPIForgotPassword, map[string]string{"email": "nobody@x.com"}))

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestResetPasswordErrors(t *testing.T) {
	f := setupServer(t)
	f.register(t, testEmail)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{
			name:     "unknown account",
			body:     map[string]string{"email": "nobody@x.com", "token": "t", "password": testPassword},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "short password",
			body:     map[string]string{"email": testEmail, "token": "t", "password": "Ab1"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "weak password",
			body:     map[string]string{"email": testEmail, "token": "t", "password": "alllowercase"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid token",
			body:     map[string]string{"email": testEmail, "token": "bogus", "password": testPassword},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(jsonRequest(http.MethodPost, server.RouteAPIResetPassword, tt.body))
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := setupServer(t)
	cookie := f.register(t, testEmail)

	req := jsonRequest(http.MethodPost, server.RouteAPILogout, nil)
	req.AddCookie(cookie)
	w := f.do(req)
	require.Equal(t, http.StatusNoContent, w.Code)

	cleared := sessionCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestIPRateLimit(t *testing.T) {
	f := setupServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i <= 100; i++ {
		req := httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.9")
		last = f.do(req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.JSONEq(t, `{"error":"Too many requests"}`, last.Body.String())
}

func TestCorsPreflight(t *testing.T) {
	f := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAPILogin, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsPreflightDisallowedOrigin(t *testing.T) {
	f := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAPILogin, nil)
	req.Header.Set("Origin", "http://evil.example")
	w := f.do(req)

	// 200 with no CORS headers; the browser blocks the actual request.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsPreflightSameOrigin(t *testing.T) {
	f := setupServer(t)

	w := f.do(httptest.NewRequest(http.MethodOptions, server.RouteAPIMood, nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsDisallowedOrigin(t *testing.T) {
	f := setupServer(t)

	req := jsonRequest(http.MethodPost, server.RouteAPILogin, map[string]string{
		"identifier": testEmail,
		"password":   testPassword,
	})
	req.Header.Set("Origin", "http://evil.example")
	w := f.do(req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	f := setupServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
