package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/tournament"
)

const modalityColumns = "id, name, kind, sport, min_players, max_players, active"

func scanModality(row pgx.Row) (tournament.Modality, error) {
	var m tournament.Modality
	err := row.Scan(&m.ID, &m.Name, &m.Kind, &m.Sport, &m.MinPlayers, &m.MaxPlayers, &m.Active)
	return m, err
}

// ListModalities returns modalities ordered by name.
func (s *Store) ListModalities(ctx context.Context, activeOnly bool) ([]tournament.Modality, error) {
	q := psql.Select(modalityColumns).From("modalities").OrderBy("name")
	if activeOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("list modalities", err)
	}
	defer rows.Close()

	out := []tournament.Modality{}
	for rows.Next() {
		m, err := scanModality(rows)
		if err != nil {
			return nil, wrap("scan modality", err)
		}
		out = append(out, m)
	}
	return out, wrap("list modalities", rows.Err())
}

// GetModality returns one modality.
func (s *Store) GetModality(ctx context.Context, id int64) (tournament.Modality, error) {
	m, err := scanModality(s.pool.QueryRow(ctx, "modality_by_id", id))
	return m, wrap("get modality", err)
}

// CreateModality inserts m and sets its id.
func (s *Store) CreateModality(ctx context.Context, m *tournament.Modality) error {
	if err := m.Validate(); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO modalities (name, kind, sport, min_players, max_players, active)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		m.Name, m.Kind, m.Sport, m.MinPlayers, m.MaxPlayers, m.Active,
	).Scan(&m.ID)
	return wrap("create modality", err)
}

// UpdateModality overwrites every editable column of m.
func (s *Store) UpdateModality(ctx context.Context, m *tournament.Modality) error {
	if err := m.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE modalities SET name=$2, kind=$3, sport=$4, min_players=$5, max_players=$6, active=$7
		WHERE id=$1`,
		m.ID, m.Name, m.Kind, m.Sport, m.MinPlayers, m.MaxPlayers, m.Active)
	return wrap("update modality", mustAffect(tag, err))
}

// DeleteModality removes a modality. Fails with ErrReference while teams or
// games still point at it.
func (s *Store) DeleteModality(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM modalities WHERE id=$1", id)
	return wrap("delete modality", mustAffect(tag, err))
}
