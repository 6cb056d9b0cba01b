package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayoung-dev/gptfolio-backend/internal/controller"
	"github.com/hayoung-dev/gptfolio-backend/internal/models"
	"github.com/hayoung-dev/gptfolio-backend/internal/service"
	"github.com/hayoung-dev/gptfolio-backend/internal/storage/memory"
	"github.com/hayoung-dev/gptfolio-backend/internal/util"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()

	log := zap.NewNop().Sugar()
	st := memory.NewStorage()
	tokens := service.NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("test-secret"),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	}, memory.NewTokenDenylist())
	auth := service.NewAuthService(st, tokens, service.NewWebhookService(log, ""), log)
	users := service.NewUserService(st, log)
	c := controller.NewController(log, auth, users)

	sc := &util.ServerConfig{
		ServerAddr:      "localhost:0",
		WriteTimeout:    time.Second,
		ReadTimeout:     time.Second,
		IdleTimeout:     time.Second,
		GracefulTimeout: time.Second,
	}

	// nil redis client: the rate limiter stays unregistered in tests.
	a := NewAPI(c, tokens, nil, util.NewRateLimiterConfig(), sc, log, nil)
	a.RegisterRoutes()
	return a
}

func doJSON(a *API, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	req.Header.Set("User-Agent", "UA1")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func signUp(t *testing.T, a *API) {
	t.Helper()
	rec := doJSON(a, http.MethodPost, "/user/sign_up",
		`{"username":"alice","email":"alice@example.com","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func login(t *testing.T, a *API) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	rec := doJSON(a, http.MethodPost, "/auth/login",
		`{"username":"alice","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)

	for _, c := range rec.Result().Cookies() {
		if c.Name == models.RefreshCookieName {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	return body.AccessToken, refreshCookie
}

func TestSignUp(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	rec := doJSON(a, http.MethodPost, "/user/sign_up",
		`{"username":"alice","email":"alice@example.com","password":"hunter2","full_name":"Alice"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body models.SignUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "alice@example.com", body.Email)
	require.NotZero(t, body.ID)

	rec = doJSON(a, http.MethodPost, "/user/sign_up",
		`{"username":"alice2","email":"alice@example.com","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "email already registered")
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	signUp(t, a)

	_, cookie := login(t, a)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.Zero(t, cookie.MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	signUp(t, a)

	rec := doJSON(a, http.MethodPost, "/auth/login",
		`{"username":"alice","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid credentials")
	require.Empty(t, rec.Result().Cookies())
}

func TestRefresh_RotatesCookie(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	signUp(t, a)
	_, cookie := login(t, a)

	rec := doJSON(a, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == models.RefreshCookieName {
			rotated = c
		}
	}
	require.NotNil(t, rotated)
	require.NotEqual(t, cookie.Value, rotated.Value)

	// The consumed cookie is rejected on replay.
	rec = doJSON(a, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid refresh token")
}

func TestRefresh_MissingCookie(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	rec := doJSON(a, http.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_FingerprintMismatch(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	signUp(t, a)
	_, cookie := login(t, a)

	rec := doJSON(a, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set("User-Agent", "UA2")
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid refresh token")
}

func TestLogout(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	signUp(t, a)
	access, cookie := login(t, a)

	// Bearer token required before anything else.
	rec := doJSON(a, http.MethodPost, "/auth/logout", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(a, http.MethodPost, "/auth/logout", "", func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "Logged out successfully")

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == models.RefreshCookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	// The denylisted access token no longer passes the bearer check.
	rec = doJSON(a, http.MethodPost, "/auth/logout", "", func(r *http.Request) {
		r.AddCookie(cookie)
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// And the revoked refresh token cannot be refreshed.
	rec = doJSON(a, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPing(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	rec := doJSON(a, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
