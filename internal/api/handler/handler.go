// Package handler provides HTTP handlers for all API endpoints. Public reads
// go through the in-memory cache with ETags; admin writes go straight to
// the store and rely on the change feed to invalidate cached reads.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/cache"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/live"
	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

const maxBodyBytes = 1 << 20

// Pinger checks the database.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the shared dependencies of every handler.
type Deps struct {
	Store    *store.Store
	DB       Pinger
	Cache    *cache.Cache
	Hub      *live.Hub
	Live     *live.Service
	Sessions *auth.Sessions
	Accounts auth.AccountFunc // nil reads admin_users through Store
	Config   *config.Config
	Logger   *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
	loc *time.Location
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	loc := time.UTC
	if d.Config != nil && d.Config.TimeZone != "" {
		if l, err := time.LoadLocation(d.Config.TimeZone); err == nil {
			loc = l
		} else {
			d.Logger.Warn("Unknown TIME_ZONE, using UTC", "tz", d.Config.TimeZone, "error", err)
		}
	}
	return &Handler{Deps: d, loc: loc}
}

// Root serves API info at /api.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "School Cup API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs/",
		"sports":  config.SportRegistry,
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.HealthCheck(r.Context()); err != nil {
		h.Logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache and live feed statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"cache":     h.Cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Hub != nil {
		body["live"] = h.Hub.Stats()
	}
	respond.WriteJSONObject(w, http.StatusOK, body)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// fail maps an error onto the error envelope. Unexpected errors are logged
// and reported as INTERNAL without details.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg, field := classify(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	respond.WriteFieldError(w, status, code, msg, field)
}

func classify(err error) (status int, code, msg, field string) {
	var ve *tournament.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, respond.CodeValidation, ve.Message, ve.Field
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, respond.CodeNotFound, "Not found", ""
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, respond.CodeConflict, "Already exists", ""
	case errors.Is(err, store.ErrReference):
		return http.StatusConflict, respond.CodeConflict, "Still referenced by other rows, or references a missing row", ""
	case errors.Is(err, store.ErrConstraint):
		return http.StatusBadRequest, respond.CodeValidation, "Violates a data rule", ""
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid email or password", ""
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, respond.CodeValidation, err.Error(), "password"
	case errors.Is(err, scoring.ErrUnknownSide),
		errors.Is(err, scoring.ErrUnknownCommand),
		errors.Is(err, scoring.ErrInvalidConfig):
		return http.StatusBadRequest, respond.CodeValidation, rootMessage(err), ""
	case errors.Is(err, tournament.ErrInvalidTransition),
		errors.Is(err, tournament.ErrRegistrationClosed),
		errors.Is(err, tournament.ErrRegistrationFull),
		errors.Is(err, tournament.ErrGameNotPlayed),
		errors.Is(err, store.ErrConfigLocked),
		errors.Is(err, scoring.ErrMatchFinished),
		errors.Is(err, scoring.ErrTimeoutLimit),
		errors.Is(err, scoring.ErrNothingToUndo),
		errors.Is(err, scoring.ErrServeLocked),
		errors.Is(err, scoring.ErrUnsupportedSport):
		return http.StatusConflict, respond.CodeConflict, rootMessage(err), ""
	}
	return http.StatusInternalServerError, respond.CodeInternal, "Internal error", ""
}

// rootMessage drops the store operation prefixes so clients see the rule
// that failed, e.g. "invalid status transition: finished -> live".
func rootMessage(err error) string {
	chain := []error{err}
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e)
	}
	root := chain[len(chain)-1].Error()
	for _, e := range chain {
		if msg := e.Error(); strings.HasPrefix(msg, root) {
			return msg
		}
	}
	return root
}

// decode reads a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &tournament.ValidationError{Field: "body", Message: "request body is empty"}
		}
		return &tournament.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &tournament.ValidationError{Field: name, Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &tournament.ValidationError{Field: name, Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

// cached serves key from the cache, loading and storing it on a miss.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, load func(ctx context.Context) (any, error)) {
	if data, etag, ok := h.Cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	gen := h.Cache.Generation(key)
	v, err := load(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		h.fail(w, r, fmt.Errorf("encode %s: %w", key, err))
		return
	}
	etag, _ := h.Cache.SetIfCurrent(key, data, ttl, gen)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}

// audit records an admin action. Failures are logged, never returned.
func (h *Handler) audit(r *http.Request, action, format string, args ...any) {
	details := fmt.Sprintf(format, args...)
	if err := h.Store.Audit(r.Context(), auth.UserID(r.Context()), action, details); err != nil {
		h.Logger.Warn("Audit write failed", "action", action, "error", err)
	}
	h.Logger.Info("Admin action", "action", action, "user_id", auth.UserID(r.Context()), "details", details)
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respond.WriteError(w, http.StatusNotFound, respond.CodeNotFound, "No route for "+r.Method+" "+r.URL.Path)
}
