package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/cache"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

type fakePinger struct{ err error }

func (f fakePinger) HealthCheck(context.Context) error { return f.err }

// newTestHandler builds a handler whose store has no pool: only paths that
// fail before touching the database may be exercised.
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return New(Deps{
		Store:    store.New(nil),
		DB:       fakePinger{},
		Cache:    cache.New(true),
		Sessions: auth.NewSessions("0123456789abcdef-test", time.Hour, false),
		Config:   &config.Config{PhotoMaxBytes: 1024, TimeZone: "America/Sao_Paulo"},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorResponse {
	t.Helper()
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
		field  string
	}{
		{"validation", fmt.Errorf("create team: %w", &tournament.ValidationError{Field: "name", Message: "is required"}),
			http.StatusBadRequest, respond.CodeValidation, "is required", "name"},
		{"not found", fmt.Errorf("get team: %w", store.ErrNotFound), http.StatusNotFound, respond.CodeNotFound, "Not found", ""},
		{"unique", fmt.Errorf("create team: %w", fmt.Errorf("%w: teams_name_key", store.ErrConflict)),
			http.StatusConflict, respond.CodeConflict, "Already exists", ""},
		{"referenced", fmt.Errorf("delete team: %w", store.ErrReference), http.StatusConflict, respond.CodeConflict, "", ""},
		{"check", fmt.Errorf("update: %w", store.ErrConstraint), http.StatusBadRequest, respond.CodeValidation, "", ""},
		{"transition", fmt.Errorf("set status: %w", tournament.Transition(tournament.StatusFinished, tournament.StatusLive)),
			http.StatusConflict, respond.CodeConflict, "invalid status transition: finished -> live", ""},
		{"closed", fmt.Errorf("submit team request: %w", tournament.ErrRegistrationClosed),
			http.StatusConflict, respond.CodeConflict, "registration is closed", ""},
		{"config locked", fmt.Errorf("save config: %w", store.ErrConfigLocked),
			http.StatusConflict, respond.CodeConflict, store.ErrConfigLocked.Error(), ""},
		{"match finished", scoring.ErrMatchFinished, http.StatusConflict, respond.CodeConflict, "match already finished", ""},
		{"timeouts", fmt.Errorf("update live: %w", scoring.ErrTimeoutLimit), http.StatusConflict, respond.CodeConflict, scoring.ErrTimeoutLimit.Error(), ""},
		{"bad side", scoring.ErrUnknownSide, http.StatusBadRequest, respond.CodeValidation, "unknown side", ""},
		{"bad credentials", auth.ErrBadCredentials, http.StatusUnauthorized, respond.CodeUnauthorized, "", ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, respond.CodeInternal, "Internal error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg, field := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, msg)
			}
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.fail(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("password=secret in DSN"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestCreateTeamRejectsBlankName(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/teams",
		strings.NewReader(`{"name":"   ","modality_id":1,"category":"misto"}`))
	rec := httptest.NewRecorder()
	h.CreateTeam(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, respond.CodeValidation, body.Error.Code)
	assert.Equal(t, "name", body.Error.Field)
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	h := newTestHandler(t)
	for name, body := range map[string]string{
		"empty":   "",
		"garbage": "{",
		"unknown": `{"name":"A","modality_id":1,"category":"misto","color":"red"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateTeam(rec, httptest.NewRequest(http.MethodPost, "/admin/teams", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "body", decodeError(t, rec).Error.Field)
		})
	}
}

func TestPathIDValidation(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	r.Delete("/teams/{id}", h.DeleteTeam)

	for _, id := range []string{"abc", "0", "-4"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/teams/"+id, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "id", decodeError(t, rec).Error.Field)
	}
}

func TestCalendarValidatesRange(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		query string
		field string
	}{
		{"from=17/10/2026", "from"},
		{"from=2026-10-17&to=2026-10-01", "to"},
		{"from=2026-01-01&to=2026-12-31", "to"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.Calendar(rec, httptest.NewRequest(http.MethodGet, "/calendar?"+tt.query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, tt.query)
		assert.Equal(t, tt.field, decodeError(t, rec).Error.Field)
	}
}

func TestTopPlayersRejectsUnknownStat(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.TopPlayers(rec, httptest.NewRequest(http.MethodGet, "/players/top?stat=created_at", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "stat", decodeError(t, rec).Error.Field)
}

func TestCachedServesETags(t *testing.T) {
	h := newTestHandler(t)
	loads := 0
	serve := func(inm string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/teams", nil)
		if inm != "" {
			req.Header.Set("If-None-Match", inm)
		}
		rec := httptest.NewRecorder()
		h.cached(rec, req, cache.PrefixTeams+"list?", cache.TTLReference, func(context.Context) (any, error) {
			loads++
			return []tournament.Team{{ID: 1, Name: "Falcons"}}, nil
		})
		return rec
	}

	first := serve("")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Contains(t, first.Body.String(), "Falcons")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := serve("")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	third := serve(etag)
	assert.Equal(t, http.StatusNotModified, third.Code)
	assert.Empty(t, third.Body.String())

	assert.Equal(t, 1, loads)
}

func TestCachedSkipsStoreWhenInvalidatedDuringLoad(t *testing.T) {
	h := newTestHandler(t)
	key := cache.PrefixTeams + "list?"
	name := "OldName"
	load := func(context.Context) (any, error) {
		v := []tournament.Team{{ID: 1, Name: name}}
		// The rename commits and the change feed fires before the old row is stored.
		name = "NewName"
		h.Cache.InvalidateTable("teams")
		return v, nil
	}

	rec := httptest.NewRecorder()
	h.cached(rec, httptest.NewRequest(http.MethodGet, "/teams", nil), key, cache.TTLReference, load)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OldName")

	_, _, ok := h.Cache.Get(key)
	assert.False(t, ok, "a load that raced an invalidation must not be kept")

	rec = httptest.NewRecorder()
	h.cached(rec, httptest.NewRequest(http.MethodGet, "/teams", nil), key, cache.TTLReference,
		func(context.Context) (any, error) { return []tournament.Team{{ID: 1, Name: name}}, nil })
	assert.Contains(t, rec.Body.String(), "NewName")
	data, _, ok := h.Cache.Get(key)
	require.True(t, ok)
	assert.Contains(t, string(data), "NewName")
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.cached(rec, httptest.NewRequest(http.MethodGet, "/teams/9", nil), cache.PrefixTeams+"9", time.Minute,
		func(context.Context) (any, error) { return nil, fmt.Errorf("get team: %w", store.ErrNotFound) })

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, _, ok := h.Cache.Get(cache.PrefixTeams + "9")
	assert.False(t, ok)
}

func TestHealthCheckDB(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.HealthCheckDB(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.DB = fakePinger{err: errors.New("refused")}
	rec = httptest.NewRecorder()
	h.HealthCheckDB(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}

func TestUploadPhotoRequiresFile(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	r.Put("/players/{id}/photo", h.UploadPhoto)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/players/3/photo", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "photo", decodeError(t, rec).Error.Field)
}

func TestLoginRequiresCredentials(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"  ","password":""}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionWithoutClaims(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewFallsBackToUTC(t *testing.T) {
	h := New(Deps{Config: &config.Config{TimeZone: "Mars/Olympus"}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Equal(t, time.UTC, h.loc)
}
