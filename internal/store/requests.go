package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// Request kinds as they appear in admin routes.
const (
	RequestKindTeam   = "teams"
	RequestKindPlayer = "players"
)

// GetRegistration returns the single registration window row.
func (s *Store) GetRegistration(ctx context.Context) (tournament.RegistrationConfig, error) {
	return getRegistration(ctx, s.pool)
}

func getRegistration(ctx context.Context, q querier) (tournament.RegistrationConfig, error) {
	var c tournament.RegistrationConfig
	err := q.QueryRow(ctx, "registration_config").Scan(&c.Open, &c.OpensAt, &c.ClosesAt, &c.MaxTeamsPerModality)
	return c, wrap("get registration", err)
}

// lockRegistration reads the window row FOR UPDATE. Team signups hold it
// while counting slots so concurrent submissions cannot overshoot the cap.
func lockRegistration(ctx context.Context, tx pgx.Tx) (tournament.RegistrationConfig, error) {
	var c tournament.RegistrationConfig
	err := tx.QueryRow(ctx, "registration_config_lock").Scan(&c.Open, &c.OpensAt, &c.ClosesAt, &c.MaxTeamsPerModality)
	return c, wrap("lock registration", err)
}

// UpdateRegistration overwrites the registration window.
func (s *Store) UpdateRegistration(ctx context.Context, c tournament.RegistrationConfig) error {
	if c.MaxTeamsPerModality < 0 {
		return &tournament.ValidationError{Field: "max_teams_per_modality", Message: "must not be negative"}
	}
	if c.OpensAt != nil && c.ClosesAt != nil && !c.ClosesAt.After(*c.OpensAt) {
		return &tournament.ValidationError{Field: "closes_at", Message: "must be after opens_at"}
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE inscricoes_config SET open=$1, opens_at=$2, closes_at=$3, max_teams_per_modality=$4
		WHERE id = 1`, c.Open, c.OpensAt, c.ClosesAt, c.MaxTeamsPerModality)
	return wrap("update registration", err)
}

// CloseExpiredRegistration flips the open flag off once closes_at has
// passed. It reports whether the window was closed by this call.
func (s *Store) CloseExpiredRegistration(ctx context.Context, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE inscricoes_config SET open = false
		WHERE id = 1 AND open AND closes_at IS NOT NULL AND closes_at <= $1`, now)
	if err != nil {
		return false, wrap("close registration", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeReviewedRequests deletes approved and rejected requests reviewed
// before cutoff and returns how many went.
func (s *Store) PurgeReviewedRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"team_requests", "player_requests"} {
		tag, err := qExec(ctx, s.pool, psql.Delete(table).
			Where(sq.NotEq{"status": tournament.RequestPending}).
			Where(sq.Lt{"reviewed_at": cutoff}))
		if err != nil {
			return total, wrap("purge "+table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// --------------------------------------------------------------------------
// Public submissions
// --------------------------------------------------------------------------

// SubmitTeamRequest stores a pending team signup while the window is open
// and the modality still has slots.
func (s *Store) SubmitTeamRequest(ctx context.Context, r *tournament.TeamRequest, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return wrap("submit team request", s.inTx(ctx, func(tx pgx.Tx) error {
		cfg, err := lockRegistration(ctx, tx)
		if err != nil {
			return err
		}
		if !cfg.AcceptsAt(now) {
			return tournament.ErrRegistrationClosed
		}
		var active bool
		err = tx.QueryRow(ctx, "SELECT active FROM modalities WHERE id=$1", r.ModalityID).Scan(&active)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if !active {
			return &tournament.ValidationError{Field: "modality_id", Message: "modality is not open for signups"}
		}
		if err := checkSlots(ctx, tx, cfg, r.ModalityID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO team_requests (name, modality_id, category, coach_name, coach_contact)
			VALUES ($1,$2,$3,$4,$5) RETURNING id, status, created_at`,
			r.Name, r.ModalityID, r.Category, r.CoachName, r.CoachContact,
		).Scan(&r.ID, &r.Status, &r.CreatedAt)
	}))
}

// SubmitPlayerRequest stores a pending player signup for an existing team.
func (s *Store) SubmitPlayerRequest(ctx context.Context, r *tournament.PlayerRequest, now time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return wrap("submit player request", s.inTx(ctx, func(tx pgx.Tx) error {
		cfg, err := getRegistration(ctx, tx)
		if err != nil {
			return err
		}
		if !cfg.AcceptsAt(now) {
			return tournament.ErrRegistrationClosed
		}
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM teams WHERE id=$1)", r.TeamID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &tournament.ValidationError{Field: "team_id", Message: "team does not exist"}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO player_requests (name, jersey_number, team_id)
			VALUES ($1,$2,$3) RETURNING id, status, created_at`,
			r.Name, r.JerseyNumber, r.TeamID,
		).Scan(&r.ID, &r.Status, &r.CreatedAt)
	}))
}

// checkSlots counts approved teams plus pending requests against the cap.
// A zero cap means unlimited.
func checkSlots(ctx context.Context, q querier, cfg tournament.RegistrationConfig, modalityID int64) error {
	if cfg.MaxTeamsPerModality == 0 {
		return nil
	}
	teams, err := countTeams(ctx, q, modalityID)
	if err != nil {
		return err
	}
	var pending int
	err = q.QueryRow(ctx, "SELECT count(*) FROM team_requests WHERE modality_id=$1 AND status=$2",
		modalityID, tournament.RequestPending).Scan(&pending)
	if err != nil {
		return err
	}
	if teams+pending >= cfg.MaxTeamsPerModality {
		return fmt.Errorf("%w (%d of %d)", tournament.ErrRegistrationFull, teams+pending, cfg.MaxTeamsPerModality)
	}
	return nil
}

// --------------------------------------------------------------------------
// Review
// --------------------------------------------------------------------------

// ListTeamRequests returns team requests, newest first. An empty status
// lists all of them.
func (s *Store) ListTeamRequests(ctx context.Context, status string) ([]tournament.TeamRequest, error) {
	q := psql.Select("id, name, modality_id, category, coach_name, coach_contact, status, reason, reviewed_by, reviewed_at, created_at").
		From("team_requests").OrderBy("created_at DESC", "id DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}
	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("list team requests", err)
	}
	defer rows.Close()

	out := []tournament.TeamRequest{}
	for rows.Next() {
		var r tournament.TeamRequest
		if err := rows.Scan(&r.ID, &r.Name, &r.ModalityID, &r.Category, &r.CoachName, &r.CoachContact,
			&r.Status, &r.Reason, &r.ReviewedBy, &r.ReviewedAt, &r.CreatedAt); err != nil {
			return nil, wrap("scan team request", err)
		}
		out = append(out, r)
	}
	return out, wrap("list team requests", rows.Err())
}

// ListPlayerRequests returns player requests, newest first.
func (s *Store) ListPlayerRequests(ctx context.Context, status string) ([]tournament.PlayerRequest, error) {
	q := psql.Select("id, name, jersey_number, team_id, status, reason, reviewed_by, reviewed_at, created_at").
		From("player_requests").OrderBy("created_at DESC", "id DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}
	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("list player requests", err)
	}
	defer rows.Close()

	out := []tournament.PlayerRequest{}
	for rows.Next() {
		var r tournament.PlayerRequest
		if err := rows.Scan(&r.ID, &r.Name, &r.JerseyNumber, &r.TeamID,
			&r.Status, &r.Reason, &r.ReviewedBy, &r.ReviewedAt, &r.CreatedAt); err != nil {
			return nil, wrap("scan player request", err)
		}
		out = append(out, r)
	}
	return out, wrap("list player requests", rows.Err())
}

// Review is the outcome of approving or rejecting a request.
type Review struct {
	Kind      string `json:"kind"`
	RequestID int64  `json:"request_id"`
	Status    string `json:"status"`
	// CreatedID is the team or player row made on approval.
	CreatedID int64 `json:"created_id,omitempty"`
}

// ReviewRequest approves or rejects a pending request. Approval inserts the
// team or player row in the same transaction, so a full roster or a taken
// jersey number leaves the request pending. reviewer may be zero for
// command-line reviews.
func (s *Store) ReviewRequest(ctx context.Context, kind string, id int64, approve bool, reviewer int64, reason string) (Review, error) {
	table := ""
	switch kind {
	case RequestKindTeam:
		table = config.TeamRequestsTable
	case RequestKindPlayer:
		table = config.PlayerRequestsTable
	default:
		return Review{}, &tournament.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown request kind %q", kind)}
	}

	rev := Review{Kind: kind, RequestID: id, Status: tournament.RequestRejected}
	if approve {
		rev.Status = tournament.RequestApproved
	}
	var reviewedBy *int64
	if reviewer > 0 {
		reviewedBy = &reviewer
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, "SELECT status FROM "+table+" WHERE id=$1 FOR UPDATE", id).Scan(&status); err != nil {
			return err
		}
		if err := tournament.ReviewTransition(status); err != nil {
			return err
		}

		if approve {
			var err error
			rev.CreatedID, err = materialise(ctx, tx, kind, id)
			if err != nil {
				return err
			}
		}

		_, err := qExec(ctx, tx, psql.Update(table).SetMap(map[string]any{
			"status":      rev.Status,
			"reason":      reason,
			"reviewed_by": reviewedBy,
			"reviewed_at": sq.Expr("NOW()"),
		}).Where(sq.Eq{"id": id}))
		return err
	})
	if err != nil {
		return Review{}, wrap(fmt.Sprintf("review %s request %d", kind, id), err)
	}
	return rev, nil
}

func materialise(ctx context.Context, tx pgx.Tx, kind string, id int64) (int64, error) {
	if kind == RequestKindTeam {
		var r tournament.TeamRequest
		err := tx.QueryRow(ctx, `
			SELECT name, modality_id, category, coach_name, coach_contact
			FROM team_requests WHERE id=$1`, id).
			Scan(&r.Name, &r.ModalityID, &r.Category, &r.CoachName, &r.CoachContact)
		if err != nil {
			return 0, err
		}
		t := r.Team()
		if err := t.Validate(); err != nil {
			return 0, err
		}
		err = insertTeam(ctx, tx, &t)
		return t.ID, err
	}

	var r tournament.PlayerRequest
	err := tx.QueryRow(ctx, "SELECT name, jersey_number, team_id FROM player_requests WHERE id=$1", id).
		Scan(&r.Name, &r.JerseyNumber, &r.TeamID)
	if err != nil {
		return 0, err
	}
	p := r.Player()
	if err := p.Validate(); err != nil {
		return 0, err
	}
	err = insertPlayer(ctx, tx, &p)
	return p.ID, err
}
