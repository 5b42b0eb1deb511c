package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// dummyHash is compared against when the email is unknown so a miss costs
// the same as a wrong password.
var dummyHash, _ = auth.HashPassword("unknown-account-placeholder")

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionInfo describes the signed-in user.
type SessionInfo struct {
	User      store.Admin `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Login checks credentials and sets the session cookie.
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginInput true "Credentials"
// @Success 200 {object} SessionInfo
// @Failure 401 {object} respond.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		h.fail(w, r, &tournament.ValidationError{Field: "email", Message: "email and password are required"})
		return
	}

	admin, err := h.Store.GetAdminByEmail(r.Context(), in.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = auth.CheckPassword(dummyHash, in.Password)
		err = auth.ErrBadCredentials
	case err == nil:
		err = auth.CheckPassword(admin.PassHash, in.Password)
	}
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			h.Logger.Warn("Login failed", "email", in.Email, "ip", r.RemoteAddr)
		}
		h.fail(w, r, err)
		return
	}

	exp, err := h.Sessions.Issue(w, admin.ID, admin.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.TouchLogin(r.Context(), admin.ID); err != nil {
		h.Logger.Warn("Failed to record login time", "user_id", admin.ID, "error", err)
	}
	if err := h.Store.Audit(r.Context(), admin.ID, "login", admin.Email); err != nil {
		h.Logger.Warn("Audit write failed", "action", "login", "error", err)
	}
	h.Logger.Info("Signed in", "user_id", admin.ID, "role", admin.Role)
	respond.WriteJSONObject(w, http.StatusOK, SessionInfo{User: admin, ExpiresAt: exp})
}

// Logout clears the session cookie.
// @Summary Sign out
// @Tags auth
// @Success 204
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	respond.WriteNoContent(w)
}

// Session returns the signed-in user.
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} SessionInfo
// @Failure 401 {object} respond.ErrorResponse
// @Router /auth/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Not signed in")
		return
	}
	admin, err := h.Store.GetAdminByID(r.Context(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		h.Sessions.Clear(w)
		respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Account no longer exists")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	info := SessionInfo{User: admin}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	respond.WriteJSONObject(w, http.StatusOK, info)
}
