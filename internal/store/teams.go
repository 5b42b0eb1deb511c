package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/tournament"
)

const teamColumns = "id, name, modality_id, category, coach_name, coach_contact, created_at"

// TeamFilter narrows ListTeams. Zero values match everything.
type TeamFilter struct {
	ModalityID int64
	Category   string
	Search     string
}

func scanTeam(row pgx.Row) (tournament.Team, error) {
	var t tournament.Team
	err := row.Scan(&t.ID, &t.Name, &t.ModalityID, &t.Category, &t.CoachName, &t.CoachContact, &t.CreatedAt)
	return t, err
}

// ListTeams returns teams ordered by name.
func (s *Store) ListTeams(ctx context.Context, f TeamFilter) ([]tournament.Team, error) {
	q := psql.Select(teamColumns).From("teams").OrderBy("name", "id")
	if f.ModalityID > 0 {
		q = q.Where(sq.Eq{"modality_id": f.ModalityID})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"category": f.Category})
	}
	if f.Search != "" {
		q = q.Where(sq.ILike{"name": "%" + f.Search + "%"})
	}

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("list teams", err)
	}
	defer rows.Close()

	out := []tournament.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, wrap("scan team", err)
		}
		out = append(out, t)
	}
	return out, wrap("list teams", rows.Err())
}

// GetTeam returns one team.
func (s *Store) GetTeam(ctx context.Context, id int64) (tournament.Team, error) {
	t, err := scanTeam(s.pool.QueryRow(ctx, "team_by_id", id))
	return t, wrap("get team", err)
}

// CreateTeam validates and inserts t.
func (s *Store) CreateTeam(ctx context.Context, t *tournament.Team) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return wrap("create team", insertTeam(ctx, s.pool, t))
}

func insertTeam(ctx context.Context, q querier, t *tournament.Team) error {
	return q.QueryRow(ctx, `
		INSERT INTO teams (name, modality_id, category, coach_name, coach_contact)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		t.Name, t.ModalityID, t.Category, t.CoachName, t.CoachContact,
	).Scan(&t.ID, &t.CreatedAt)
}

// UpdateTeam overwrites the editable columns of t.
func (s *Store) UpdateTeam(ctx context.Context, t *tournament.Team) error {
	if err := t.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE teams SET name=$2, modality_id=$3, category=$4, coach_name=$5, coach_contact=$6
		WHERE id=$1`,
		t.ID, t.Name, t.ModalityID, t.Category, t.CoachName, t.CoachContact)
	return wrap("update team", mustAffect(tag, err))
}

// DeleteTeam removes a team and its players. Teams with games are kept
// (ErrReference) so results are never orphaned.
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM teams WHERE id=$1", id)
	return wrap("delete team", mustAffect(tag, err))
}

// countTeams counts teams of a modality, used for the registration cap.
func countTeams(ctx context.Context, q querier, modalityID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx, "SELECT count(*) FROM teams WHERE modality_id=$1", modalityID).Scan(&n)
	return n, err
}
