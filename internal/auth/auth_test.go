package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-test"

func issue(t *testing.T, s *Sessions, userID int64, role string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := s.Issue(rec, userID, role)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestIssueAndParse(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, true)
	c := issue(t, s, 7, "admin")

	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)

	cl, err := s.Parse(c.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cl.UserID)
	assert.Equal(t, "admin", cl.Role)
}

func TestParseRejects(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false)
	good := issue(t, s, 1, "admin").Value

	other := NewSessions("another-secret-of-16", time.Hour, false)
	_, err := other.Parse(good)
	assert.ErrorIs(t, err, ErrInvalidSession, "wrong secret")

	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	flip := "A"
	if parts[2][0] == 'A' {
		flip = "B"
	}
	_, err = s.Parse(parts[0] + "." + parts[1] + "." + flip + parts[2][1:])
	assert.ErrorIs(t, err, ErrInvalidSession, "tampered signature")

	_, err = s.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidSession, "alg none")
}

func TestParseExpired(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false)
	c := issue(t, s, 1, "admin")

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := s.Parse(c.Value)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRequireSession(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false)
	var seen int64
	h := s.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/teams", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/teams", nil)
	req.AddCookie(issue(t, s, 42, "admin"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), seen)
}

func TestRequirePageRedirects(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false)
	h := s.RequirePage("/admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	// A stale cookie is cleared on the way out.
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(issue(t, s, 1, "admin"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/teams/1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &Claims{UserID: 1, Role: "scorer"})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithClaims(req.Context(), &Claims{UserID: 1, Role: "admin"})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckAccount(t *testing.T) {
	s := NewSessions(testSecret, time.Hour, false)
	issued := time.Date(2026, 5, 1, 10, 0, 0, 500e6, time.UTC)
	s.now = func() time.Time { return issued }

	var acc Account
	var lookupErr error
	var seenRole string
	h := s.RequireSession(s.CheckAccount(func(context.Context, int64) (Account, error) {
		return acc, lookupErr
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cl, _ := FromContext(r.Context())
		seenRole = cl.Role
		w.WriteHeader(http.StatusNoContent)
	})))
	c := issue(t, s, 5, "admin")
	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/games", nil)
		req.AddCookie(c)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// Changed earlier in the same second the token was issued.
	acc = Account{Role: "scorer", PasswordChangedAt: issued.Add(-100 * time.Millisecond)}
	assert.Equal(t, http.StatusNoContent, call().Code)
	assert.Equal(t, "scorer", seenRole, "stored role wins")

	acc.PasswordChangedAt = issued.Add(time.Second)
	rec := call()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	lookupErr = ErrNoAccount
	assert.Equal(t, http.StatusUnauthorized, call().Code)

	lookupErr = errors.New("db down")
	rec = call()
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong horse"), ErrBadCredentials)
	assert.ErrorIs(t, CheckPassword("not-a-hash", "x"), ErrBadCredentials)
}
