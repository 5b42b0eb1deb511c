package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/schoolcup/internal/api/handler"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/cache"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/store"
)

const testSecret = "0123456789abcdef-test"

type testServer struct {
	router   http.Handler
	sessions *auth.Sessions
	accounts map[int64]auth.Account
}

// Session users of the test server, by the role their token claims.
var testUsers = map[string]int64{store.RoleAdmin: 1, store.RoleScorer: 2}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "admin.html"), []byte("<h1>login</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte("<h1>dashboard</h1>"), 0o644))

	sessions := auth.NewSessions(testSecret, time.Hour, false)
	changed := time.Now().Add(-time.Hour)
	accounts := map[int64]auth.Account{
		1: {Role: store.RoleAdmin, PasswordChangedAt: changed},
		2: {Role: store.RoleScorer, PasswordChangedAt: changed},
	}
	router := NewRouter(handler.Deps{
		Store:    store.New(nil),
		Cache:    cache.New(true),
		Sessions: sessions,
		Accounts: func(_ context.Context, id int64) (auth.Account, error) {
			a, ok := accounts[id]
			if !ok {
				return auth.Account{}, auth.ErrNoAccount
			}
			return a, nil
		},
		Config: &config.Config{
			StaticDir:        dir,
			CORSAllowOrigins: []string{"http://localhost:5173"},
			PhotoMaxBytes:    1024,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testServer{router: router, sessions: sessions, accounts: accounts}
}

func (s *testServer) do(t *testing.T, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if role != "" {
		req.AddCookie(s.cookie(t, testUsers[role], role))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) cookie(t *testing.T, userID int64, role string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := s.sessions.Issue(rec, userID, role)
	require.NoError(t, err)
	return rec.Result().Cookies()[0]
}

func TestDashboardPageGuard(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/dashboard", "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	rec = s.do(t, http.MethodGet, "/admin/dashboard", "", store.RoleScorer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard")

	rec = s.do(t, http.MethodGet, "/admin", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login")
}

func TestPagesFallBackToIndex(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/jogos", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "home")
}

func TestAdminAPIRequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/admin/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	rec = s.do(t, http.MethodPost, "/api/v1/admin/teams", `{"name":"A","modality_id":1,"category":"misto"}`, store.RoleScorer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminSessionFollowsAccountRow(t *testing.T) {
	s := newTestServer(t)
	call := func(c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/teams", strings.NewReader(`{"name":""}`))
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	// Deleted account.
	rec := call(s.cookie(t, 99, store.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	// Demoted to scorer after the token was issued.
	s.accounts[3] = auth.Account{Role: store.RoleScorer, PasswordChangedAt: time.Now().Add(-time.Hour)}
	rec = call(s.cookie(t, 3, store.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Password changed after the token was issued.
	old := s.cookie(t, 1, store.RoleAdmin)
	s.accounts[1] = auth.Account{Role: store.RoleAdmin, PasswordChangedAt: time.Now().Add(time.Hour)}
	rec = call(old)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session revoked")
}

func TestAdminCreateTeamValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/admin/teams", `{"name":"","modality_id":1,"category":"misto"}`, store.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"name"`)
}

func TestScorerMayScoreButValidationStillApplies(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/admin/games/abc/score", `{"type":"point","side":"home"}`, store.RoleScorer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"id"`)
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = s.do(t, http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestCORSAllowsCredentials(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/teams", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234").Code)
	rec := call("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)

	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234").Code, "other clients keep their own bucket")
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:5173", "cup.school.example", "*"},
		originPatterns([]string{"http://localhost:5173", "https://cup.school.example", "*", "::bad"}))
}
