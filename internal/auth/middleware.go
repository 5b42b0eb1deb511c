package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/schoolcup/internal/api/respond"
)

// ErrNoAccount is returned by an AccountFunc when the user row is gone.
var ErrNoAccount = errors.New("account does not exist")

// Account is the part of the user row a session is checked against.
type Account struct {
	Role              string
	PasswordChangedAt time.Time
}

// AccountFunc loads the current account of a session user.
type AccountFunc func(ctx context.Context, userID int64) (Account, error)

// RequireSession rejects API requests without a valid session with a 401
// JSON error.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cl, err := s.FromRequest(r)
		if err != nil {
			respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), cl)))
	})
}

// CheckAccount re-reads the session user on every request. Deleted accounts
// and tokens issued before the last password change get a 401 and a cleared
// cookie; the stored role replaces the one in the token. It must run after
// RequireSession.
func (s *Sessions) CheckAccount(lookup AccountFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl, ok := FromContext(r.Context())
			if !ok {
				respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Login required")
				return
			}
			acc, err := lookup(r.Context(), cl.UserID)
			if errors.Is(err, ErrNoAccount) {
				s.Clear(w)
				respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Session revoked")
				return
			}
			if err != nil {
				logger.Error("Session account lookup failed", "user_id", cl.UserID, "error", err)
				respond.WriteError(w, http.StatusInternalServerError, respond.CodeInternal, "Internal error")
				return
			}
			// Token times have second precision.
			if cl.IssuedAt == nil || acc.PasswordChangedAt.Truncate(time.Second).After(cl.IssuedAt.Time) {
				s.Clear(w)
				respond.WriteError(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Session revoked")
				return
			}
			if acc.Role != cl.Role {
				fresh := *cl
				fresh.Role = acc.Role
				cl = &fresh
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), cl)))
		})
	}
}

// RequirePage guards HTML views: without a valid session the browser is
// sent to loginPath.
func (s *Sessions) RequirePage(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl, err := s.FromRequest(r)
			if err != nil {
				if err != ErrNoSession {
					s.Clear(w)
				}
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), cl)))
		})
	}
}

// RequireRole must run after RequireSession.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl, ok := FromContext(r.Context())
			if !ok || !allowed[cl.Role] {
				respond.WriteError(w, http.StatusForbidden, respond.CodeForbidden, "Not allowed for this role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
