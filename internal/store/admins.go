package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Admin roles.
const (
	RoleAdmin  = "admin"
	RoleScorer = "scorer"
)

// Admin is an admin_users row.
type Admin struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	PassHash string `json:"-"`
	Role     string `json:"role"`

	PasswordChangedAt time.Time `json:"-"`
}

func scanAdmin(row pgx.Row) (Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PassHash, &a.Role, &a.PasswordChangedAt)
	return a, err
}

// GetAdminByEmail looks an admin up case-insensitively.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	a, err := scanAdmin(s.pool.QueryRow(ctx, "admin_by_email", strings.TrimSpace(email)))
	return a, wrap("get admin", err)
}

// GetAdminByID returns one admin.
func (s *Store) GetAdminByID(ctx context.Context, id int64) (Admin, error) {
	a, err := scanAdmin(s.pool.QueryRow(ctx, "admin_by_id", id))
	return a, wrap("get admin", err)
}

// CreateAdmin inserts an admin with an already hashed password.
func (s *Store) CreateAdmin(ctx context.Context, a *Admin) error {
	if a.Role == "" {
		a.Role = RoleAdmin
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO admin_users (email, name, pass_hash, role)
		VALUES (lower($1), $2, $3, $4) RETURNING id`,
		strings.TrimSpace(a.Email), a.Name, a.PassHash, a.Role,
	).Scan(&a.ID)
	return wrap("create admin", err)
}

// SetPassword replaces the password hash of the admin with email. Sessions
// issued before the change stop working.
func (s *Store) SetPassword(ctx context.Context, email, hash string) error {
	tag, err := s.pool.Exec(ctx, "UPDATE admin_users SET pass_hash=$2, password_changed_at=NOW() WHERE lower(email)=lower($1)",
		strings.TrimSpace(email), hash)
	return wrap("set password", mustAffect(tag, err))
}

// TouchLogin records a successful login.
func (s *Store) TouchLogin(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, "UPDATE admin_users SET last_login_at=NOW() WHERE id=$1", id)
	return wrap("touch login", err)
}

// --------------------------------------------------------------------------
// Audit log
// --------------------------------------------------------------------------

// AuditEntry is one audit_log row.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit records an admin action. actorID zero means the command line.
func (s *Store) Audit(ctx context.Context, actorID int64, action, details string) error {
	var actor *int64
	if actorID > 0 {
		actor = &actorID
	}
	_, err := s.pool.Exec(ctx, "INSERT INTO audit_log (actor_id, action, details) VALUES ($1,$2,$3)",
		actor, action, details)
	return wrap("audit", err)
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := psql.Select("l.id", "l.actor_id", "COALESCE(u.email, '')", "l.action", "l.details", "l.created_at").
		From("audit_log l").
		LeftJoin("admin_users u ON u.id = l.actor_id").
		OrderBy("l.created_at DESC", "l.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("list audit", err)
	}
	defer rows.Close()

	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Actor, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, wrap("scan audit", err)
		}
		out = append(out, e)
	}
	return out, wrap("list audit", rows.Err())
}
